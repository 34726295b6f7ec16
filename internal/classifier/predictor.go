// Package classifier adapts a pretrained image classifier to the demo: labels,
// per-class probabilities and the winning class for one image.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrNoLabels is returned when no label list could be loaded.
	ErrNoLabels = errors.New("classifier has no labels")
	// ErrOutputMismatch is returned when the model emits a different number of
	// scores than there are labels.
	ErrOutputMismatch = errors.New("model output does not match label count")
	// ErrNonFinite is returned when a score is NaN or infinite.
	ErrNonFinite = errors.New("model output is not finite")
	// ErrClosed is returned by Predict after Close.
	ErrClosed = errors.New("classifier closed")
)

// ModelError wraps failures loading or running a model.
type ModelError struct {
	Op   string
	Path string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("model %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.Op, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// Prediction is the classifier output for one image. Probabilities are
// index-aligned with the classifier's labels.
type Prediction struct {
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Probabilities []float64 `json:"probabilities"`
}

// Confidence is the probability of the predicted label.
func (p Prediction) Confidence() float64 {
	if p.Index < 0 || p.Index >= len(p.Probabilities) {
		return 0
	}
	return p.Probabilities[p.Index]
}

// Predictor classifies images. Implementations must be safe for concurrent
// use.
type Predictor interface {
	Predict(ctx context.Context, img image.Image) (Prediction, error)
	Labels() []string
	Close() error
}

// NewPrediction builds a Prediction from index-aligned probabilities.
func NewPrediction(labels []string, probs []float64) (Prediction, error) {
	if len(labels) == 0 {
		return Prediction{}, ErrNoLabels
	}
	if len(probs) != len(labels) {
		return Prediction{}, fmt.Errorf("%w: %d scores, %d labels", ErrOutputMismatch, len(probs), len(labels))
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Prediction{}, fmt.Errorf("%w: %s = %v", ErrNonFinite, labels[i], p)
		}
	}
	idx := Argmax(probs)
	return Prediction{Label: labels[idx], Index: idx, Probabilities: probs}, nil
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	hi := logits[0]
	for _, v := range logits[1:] {
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v - hi))
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value; the first wins on ties.
// An empty slice returns -1.
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
