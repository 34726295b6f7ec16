// Package content holds the fixed label -> content bundles shown next to a
// prediction. A Table is built once and never mutated afterwards, so it is
// safe to share between goroutines.
package content

import (
	"sort"
	"strings"
)

// MaxItems is the number of entries kept per list.
const MaxItems = 3

// Bundle is the display material for a single label.
type Bundle struct {
	Texts  []string `json:"texts" yaml:"texts"`
	Images []string `json:"images" yaml:"images"`
	Videos []string `json:"videos" yaml:"videos"`
}

// Empty reports whether the bundle has nothing to show.
func (b Bundle) Empty() bool {
	return len(b.Texts) == 0 && len(b.Images) == 0 && len(b.Videos) == 0
}

// CapList drops blank entries and keeps at most MaxItems of the rest, in
// their original order. The result is never nil.
func CapList(list []string) []string {
	out := make([]string, 0, min(len(list), MaxItems))
	for _, s := range list {
		if len(out) == MaxItems {
			break
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Table maps labels to bundles.
type Table struct {
	entries map[string]Bundle
}

// NewTable copies entries into a new Table.
func NewTable(entries map[string]Bundle) *Table {
	t := &Table{entries: make(map[string]Bundle, len(entries))}
	for label, b := range entries {
		t.entries[label] = Bundle{
			Texts:  append([]string(nil), b.Texts...),
			Images: append([]string(nil), b.Images...),
			Videos: append([]string(nil), b.Videos...),
		}
	}
	return t
}

// Select returns the capped bundle for label. Unknown labels yield an empty
// bundle.
func (t *Table) Select(label string) Bundle {
	var b Bundle
	if t != nil {
		b = t.entries[label]
	}
	return Bundle{
		Texts:  CapList(b.Texts),
		Images: CapList(b.Images),
		Videos: CapList(b.Videos),
	}
}

// Has reports whether label has an entry, even an empty one.
func (t *Table) Has(label string) bool {
	if t == nil {
		return false
	}
	_, ok := t.entries[label]
	return ok
}

// Labels returns the labels with entries, sorted.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	labels := make([]string, 0, len(t.entries))
	for l := range t.entries {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
