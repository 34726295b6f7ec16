package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/vislabel/internal/classifier"
)

// StubPredictor returns fixed probabilities for every image and records the
// sizes it was called with.
type StubPredictor struct {
	LabelSet []string
	Probs    []float64
	Err      error

	mu     sync.Mutex
	calls  []image.Rectangle
	closed bool
}

// NewStubPredictor returns a stub with the given labels and probabilities.
func NewStubPredictor(labels []string, probs []float64) *StubPredictor {
	return &StubPredictor{LabelSet: labels, Probs: probs}
}

// Predict implements classifier.Predictor.
func (s *StubPredictor) Predict(ctx context.Context, img image.Image) (classifier.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return classifier.Prediction{}, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, img.Bounds())
	s.mu.Unlock()
	if s.Err != nil {
		return classifier.Prediction{}, s.Err
	}
	return classifier.NewPrediction(s.LabelSet, append([]float64(nil), s.Probs...))
}

// Labels implements classifier.Predictor.
func (s *StubPredictor) Labels() []string { return append([]string(nil), s.LabelSet...) }

// Close implements classifier.Predictor.
func (s *StubPredictor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Calls returns the bounds of every image passed to Predict.
func (s *StubPredictor) Calls() []image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Rectangle(nil), s.calls...)
}

// Closed reports whether Close was called.
func (s *StubPredictor) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ classifier.Predictor = (*StubPredictor)(nil)
