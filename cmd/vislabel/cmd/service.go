package cmd

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/vislabel/internal/classifier"
	"github.com/MeKo-Tech/vislabel/internal/config"
	"github.com/MeKo-Tech/vislabel/internal/content"
	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/models"
)

// newPredictor opens the classifier for cfg, downloading the model first
// when model.url is set and the file is missing. Tests replace it.
var newPredictor = func(ctx context.Context, cfg *config.Config) (classifier.Predictor, error) {
	if err := models.EnsureModel(ctx, nil, cfg.Model.URL, cfg.ModelFile()); err != nil {
		return nil, err
	}
	c, err := classifier.New(cfg.ToClassifierConfig())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// loadTable reads the configured content file, or the built-in one, and
// resolves it against labels.
func loadTable(cfg *config.Config, labels []string) (*content.Table, error) {
	var (
		f   *content.File
		err error
	)
	if cfg.Content.Path != "" {
		f, err = content.Load(cfg.Content.Path)
	} else {
		f, err = content.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}
	table, err := f.Build(labels)
	if err != nil {
		return nil, fmt.Errorf("build content table: %w", err)
	}
	return table, nil
}

// openService wires predictor and content into a demo.Service. The caller
// closes the returned predictor.
func openService(ctx context.Context, cfg *config.Config) (*demo.Service, classifier.Predictor, error) {
	p, err := newPredictor(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	table, err := loadTable(cfg, p.Labels())
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return demo.NewService(p, table), p, nil
}

// resolveLabels reads the label set without starting the ONNX runtime.
func resolveLabels(cfg *config.Config) ([]string, error) {
	cc := cfg.ToClassifierConfig()
	meta, err := classifier.ResolveMetadata(cc.ModelPath, cc.MetadataPath, cc.LabelsPath)
	if err != nil {
		return nil, err
	}
	return meta.Classes, nil
}
