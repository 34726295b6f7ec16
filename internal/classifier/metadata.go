package classifier

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/vislabel/internal/onnx"
)

// Metadata describes a model's classes and input preprocessing. It is read
// from a JSON file next to the model.
type Metadata struct {
	Classes             []string   `json:"classes"`
	InputShape          []int64    `json:"input_shape,omitempty"`
	ImageSize           int        `json:"image_size,omitempty"`
	Mean                [3]float32 `json:"mean"`
	Std                 [3]float32 `json:"std"`
	OutputIsProbability bool       `json:"output_is_probability,omitempty"`
}

// Normalization returns the configured transform, ImageNet statistics when
// none is set.
func (m Metadata) Normalization() onnx.Normalization {
	n := onnx.Normalization{Mean: m.Mean, Std: m.Std}
	if n.Std == [3]float32{} {
		return onnx.ImageNet
	}
	return n
}

// LoadMetadata reads a metadata JSON file. It fails with ErrNoLabels when the
// file lists no classes.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	if len(m.Classes) == 0 {
		return Metadata{}, fmt.Errorf("%s: %w", path, ErrNoLabels)
	}
	return m, nil
}

// LoadLabels reads one label per line. Blank lines and lines starting with
// '#' are skipped.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels := ParseLabels(data)
	if len(labels) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoLabels)
	}
	return labels, nil
}

// ParseLabels splits a labels file into trimmed, non-empty labels.
func ParseLabels(data []byte) []string {
	var labels []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	return labels
}

// ResolveMetadata picks the metadata for a model. Explicit paths win; next
// <model>.json, then labels.txt in the model's directory.
func ResolveMetadata(modelPath, metadataPath, labelsPath string) (Metadata, error) {
	if metadataPath != "" {
		return LoadMetadata(metadataPath)
	}
	if labelsPath != "" {
		labels, err := LoadLabels(labelsPath)
		if err != nil {
			return Metadata{}, err
		}
		return Metadata{Classes: labels}, nil
	}
	if modelPath == "" {
		return Metadata{}, ErrNoLabels
	}

	sidecar := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
	if m, err := LoadMetadata(sidecar); err == nil {
		return m, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Metadata{}, err
	}

	labels, err := LoadLabels(filepath.Join(filepath.Dir(modelPath), "labels.txt"))
	if errors.Is(err, os.ErrNotExist) {
		return Metadata{}, fmt.Errorf("no metadata or labels next to %s: %w", modelPath, ErrNoLabels)
	}
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Classes: labels}, nil
}
