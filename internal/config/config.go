package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/vislabel/internal/classifier"
	"github.com/MeKo-Tech/vislabel/internal/models"
	"github.com/MeKo-Tech/vislabel/internal/onnx"
)

// Config represents the complete configuration for vislabel. It is loaded
// from a configuration file, environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Model   ModelConfig   `mapstructure:"model" yaml:"model" json:"model"`
	Content ContentConfig `mapstructure:"content" yaml:"content" json:"content"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
}

// ModelConfig selects the classifier model and its label source.
type ModelConfig struct {
	Path                string         `mapstructure:"path" yaml:"path" json:"path"`
	MetadataPath        string         `mapstructure:"metadata_path" yaml:"metadata_path" json:"metadata_path"`
	LabelsPath          string         `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	URL                 string         `mapstructure:"url" yaml:"url" json:"url"`
	LibraryPath         string         `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	NumThreads          int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	OutputIsProbability bool           `mapstructure:"output_is_probability" yaml:"output_is_probability" json:"output_is_probability"`
	Warmup              bool           `mapstructure:"warmup" yaml:"warmup" json:"warmup"`
	GPU                 onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// ContentConfig points at the content file. Empty means the built-in one.
type ContentConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string `mapstructure:"host" yaml:"host" json:"host"`
	Port             int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WebSocketEnabled bool   `mapstructure:"websocket_enabled" yaml:"websocket_enabled" json:"websocket_enabled"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Model: ModelConfig{
			Path: models.DefaultModelFile,
			GPU:  onnx.DefaultGPUConfig(),
		},
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8080,
			CORSOrigin:       "*",
			MaxUploadMB:      20,
			TimeoutSec:       30,
			ShutdownTimeout:  10,
			WebSocketEnabled: true,
		},
	}
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model.path must not be empty")
	}
	if c.Model.NumThreads < 0 {
		return fmt.Errorf("invalid model.num_threads: %d (must not be negative)", c.Model.NumThreads)
	}
	if err := c.Model.GPU.Validate(); err != nil {
		return fmt.Errorf("model.gpu: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	return nil
}

// ModelFile returns the model path resolved against the models directory.
func (c *Config) ModelFile() string {
	return models.ResolveModelPath(c.ModelsDir, c.Model.Path)
}

// ToClassifierConfig converts the model section to a classifier.Config with
// every path resolved.
func (c *Config) ToClassifierConfig() classifier.Config {
	return classifier.Config{
		ModelPath:           c.ModelFile(),
		MetadataPath:        models.ResolveOptional(c.ModelsDir, c.Model.MetadataPath),
		LabelsPath:          models.ResolveOptional(c.ModelsDir, c.Model.LabelsPath),
		LibraryPath:         c.Model.LibraryPath,
		NumThreads:          c.Model.NumThreads,
		OutputIsProbability: c.Model.OutputIsProbability,
		GPU:                 c.Model.GPU,
		Warmup:              c.Model.Warmup,
	}
}
