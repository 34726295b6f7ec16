package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFile []byte

var (
	// ErrMissingKey is returned for an entry with neither label nor index.
	ErrMissingKey = errors.New("entry needs a label or an index")
	// ErrIndexOutOfRange is returned when an index does not name a known label.
	ErrIndexOutOfRange = errors.New("label index out of range")
)

// EntryError reports which entry of a content file is invalid.
type EntryError struct {
	Position int
	Err      error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("content entry %d: %v", e.Position, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Entries is a list field of a content file. Only string scalars of a
// sequence are kept; any other shape decodes to an empty list.
type Entries []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	*e = Entries{}
	if node.Kind != yaml.SequenceNode {
		return nil
	}
	for _, n := range node.Content {
		if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str" {
			*e = append(*e, n.Value)
		}
	}
	return nil
}

// Entry is one bundle of a content file, keyed by label name or by the
// classifier's class index.
type Entry struct {
	Label  string  `yaml:"label,omitempty"`
	Index  *int    `yaml:"index,omitempty"`
	Texts  Entries `yaml:"texts,omitempty"`
	Images Entries `yaml:"images,omitempty"`
	Videos Entries `yaml:"videos,omitempty"`
}

// File is the on-disk content document.
type File struct {
	Entries []Entry `yaml:"content"`
}

// Parse decodes a YAML content document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse content file: %w", err)
	}
	return &f, nil
}

// Load reads and parses the content document at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: content path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	return Parse(data)
}

// Default returns the content document compiled into the binary.
func Default() (*File, error) {
	return Parse(defaultFile)
}

// Build resolves entry keys against labels and returns the table. When two
// entries resolve to the same label the later one wins.
func (f *File) Build(labels []string) (*Table, error) {
	entries := make(map[string]Bundle, len(f.Entries))
	for i, e := range f.Entries {
		key, err := e.key(labels)
		if err != nil {
			return nil, &EntryError{Position: i, Err: err}
		}
		entries[key] = Bundle{
			Texts:  normalizeTexts(e.Texts),
			Images: []string(e.Images),
			Videos: []string(e.Videos),
		}
	}
	return NewTable(entries), nil
}

func (e Entry) key(labels []string) (string, error) {
	if e.Label != "" {
		return e.Label, nil
	}
	if e.Index == nil {
		return "", ErrMissingKey
	}
	if *e.Index < 0 || *e.Index >= len(labels) {
		return "", fmt.Errorf("%w: %d (have %d labels)", ErrIndexOutOfRange, *e.Index, len(labels))
	}
	return labels[*e.Index], nil
}

func normalizeTexts(texts []string) []string {
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = norm.NFC.String(s)
	}
	return out
}
