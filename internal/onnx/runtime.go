package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides shared library discovery.
const EnvLibraryPath = "VISLABEL_ONNXRUNTIME_LIB"

// ErrLibraryNotFound is returned when no ONNX Runtime shared library exists
// at any candidate location.
var ErrLibraryNotFound = errors.New("onnxruntime shared library not found")

var envMu sync.Mutex

// LibraryName returns the shared library filename for the running OS.
func LibraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LibraryCandidates lists the locations searched for the shared library, in
// order. An explicit path, when given, is the only candidate.
func LibraryCandidates(explicit string, useGPU bool) []string {
	if explicit != "" {
		return []string{explicit}
	}
	if env := os.Getenv(EnvLibraryPath); env != "" {
		return []string{env}
	}

	name, err := LibraryName()
	if err != nil {
		return nil
	}

	var out []string
	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	out = append(out,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)
	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			out = append(out, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		out = append(out, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return out
}

// FindLibrary returns the first existing candidate.
func FindLibrary(explicit string, useGPU bool) (string, error) {
	candidates := LibraryCandidates(explicit, useGPU)
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (searched %v)", ErrLibraryNotFound, candidates)
}

// Initialize points onnxruntime_go at the shared library and initialises the
// process-wide environment. Later calls are no-ops.
func Initialize(libPath string, useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()

	if onnxrt.IsInitialized() {
		return nil
	}
	p, err := FindLibrary(libPath, useGPU)
	if err != nil {
		return err
	}
	onnxrt.SetSharedLibraryPath(p)
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnxruntime: %w", err)
	}
	return nil
}

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
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}
