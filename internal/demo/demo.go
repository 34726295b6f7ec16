// Package demo runs one classify-and-explain interaction: normalise the
// image, predict, rank the probabilities and pick the content panel to show.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MeKo-Tech/vislabel/internal/classifier"
	"github.com/MeKo-Tech/vislabel/internal/content"
	"github.com/MeKo-Tech/vislabel/internal/imageio"
	"github.com/MeKo-Tech/vislabel/internal/rank"
	"github.com/MeKo-Tech/vislabel/internal/video"
)

// Panel is the content shown for one label.
type Panel struct {
	Label  string      `json:"label"`
	Texts  []string    `json:"texts"`
	Images []string    `json:"images"`
	Videos []video.Ref `json:"videos"`
}

// Empty reports whether the panel has nothing to show.
func (p Panel) Empty() bool {
	return len(p.Texts) == 0 && len(p.Images) == 0 && len(p.Videos) == 0
}

// Interaction is the result of analysing one image. A new image produces a
// new Interaction; nothing is carried over from the previous one.
type Interaction struct {
	Image      *imageio.NormalizedImage `json:"-"`
	Prediction classifier.Prediction    `json:"prediction"`
	Ranked     []rank.Ranked            `json:"ranked"`
	InfoLabel  string                   `json:"info_label"`
	Panel      Panel                    `json:"panel"`
	Duration   time.Duration            `json:"-"`
}

// Service holds the long-lived collaborators of the demo.
type Service struct {
	predictor classifier.Predictor
	table     *content.Table
	labels    []string
}

// NewService wires a predictor with a content table. A nil table shows no
// content for any label.
func NewService(p classifier.Predictor, table *content.Table) *Service {
	return &Service{predictor: p, table: table, labels: p.Labels()}
}

// Labels returns the classifier's labels in model order.
func (s *Service) Labels() []string { return slices.Clone(s.labels) }

// Analyze classifies raw image bytes. infoLabel optionally selects which
// label's content to show; otherwise the prediction decides. Undecodable
// input fails with *imageio.DecodeError.
func (s *Service) Analyze(ctx context.Context, raw []byte, infoLabel string) (*Interaction, error) {
	start := time.Now()

	img, err := imageio.Normalize(raw)
	if err != nil {
		return nil, err
	}

	pred, err := s.predictor.Predict(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	ranked, err := rank.Rank(s.labels, pred.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	label := ChooseInfoLabel(s.labels, infoLabel, pred.Label)
	it := &Interaction{
		Image:      img,
		Prediction: pred,
		Ranked:     ranked,
		InfoLabel:  label,
		Panel:      s.Content(label),
		Duration:   time.Since(start),
	}

	slog.Debug("image analysed",
		"format", img.Format,
		"width", img.Width,
		"height", img.Height,
		"label", pred.Label,
		"confidence", pred.Confidence(),
		"info_label", label,
		"duration", it.Duration)
	return it, nil
}

// Content returns the panel for label. Unknown labels give an empty panel.
func (s *Service) Content(label string) Panel {
	b := s.table.Select(label)
	return Panel{
		Label:  label,
		Texts:  b.Texts,
		Images: b.Images,
		Videos: video.ResolveAll(b.Videos),
	}
}

// ChooseInfoLabel picks the label whose content is shown: the requested one
// if it is known, else the predicted one if known, else the first label.
// It returns "" only when labels is empty.
func ChooseInfoLabel(labels []string, requested, predicted string) string {
	if requested != "" && slices.Contains(labels, requested) {
		return requested
	}
	if slices.Contains(labels, predicted) {
		return predicted
	}
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}
