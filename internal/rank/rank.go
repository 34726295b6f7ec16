// Package rank orders classifier probabilities for display.
package rank

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrShapeMismatch matches any ShapeMismatchError via errors.Is.
var ErrShapeMismatch = errors.New("labels and probabilities differ in length")

// ShapeMismatchError is returned when the label and probability sequences
// cannot be zipped.
type ShapeMismatchError struct {
	Labels        int
	Probabilities int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%v: %d labels, %d probabilities", ErrShapeMismatch, e.Labels, e.Probabilities)
}

// Is reports whether target is ErrShapeMismatch.
func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// Ranked is one label with its probability.
type Ranked struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Percent renders the probability as a percentage with two decimals.
func (r Ranked) Percent() string { return Percent(r.Probability) }

// Rank pairs labels with probabilities by index and orders them by
// probability, highest first. Equal probabilities keep their label order and
// NaN sorts after every number. Neither input is modified.
func Rank(labels []string, probs []float64) ([]Ranked, error) {
	if len(labels) != len(probs) {
		return nil, &ShapeMismatchError{Labels: len(labels), Probabilities: len(probs)}
	}
	out := make([]Ranked, len(labels))
	for i := range labels {
		out[i] = Ranked{Label: labels[i], Probability: probs[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Probability, out[j].Probability
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return out, nil
}

// Top returns at most k leading entries. A non-positive k returns all.
func Top(ranked []Ranked, k int) []Ranked {
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// Percent formats p (0..1) as "12.34%".
func Percent(p float64) string {
	return fmt.Sprintf("%.2f%%", p*100)
}
