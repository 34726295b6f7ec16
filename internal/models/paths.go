package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names looked up in the models directory when none is configured.
const (
	DefaultModelFile    = "model.onnx"
	DefaultMetadataFile = "model.json"
	DefaultLabelsFile   = "labels.txt"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "VISLABEL_MODELS_DIR"

// findProjectRoot walks up from the working directory to the first go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath joins filename onto the models directory. Absolute
// filenames and names with a directory part are returned unchanged.
func ResolveModelPath(modelsDir, filename string) string {
	if filename == "" {
		filename = DefaultModelFile
	}
	if filepath.IsAbs(filename) || filepath.Base(filename) != filename {
		return filename
	}
	return filepath.Join(GetModelsDir(modelsDir), filename)
}

// ResolveOptional resolves filename like ResolveModelPath but returns "" for
// an empty name.
func ResolveOptional(modelsDir, filename string) string {
	if filename == "" {
		return ""
	}
	return ResolveModelPath(modelsDir, filename)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}
