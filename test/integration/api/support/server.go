package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/vislabel/internal/content"
	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/server"
	"github.com/MeKo-Tech/vislabel/internal/testutil"
)

func parseLabels(csv string) []string {
	parts := strings.Split(csv, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseProbs(csv string) ([]float64, error) {
	parts := strings.Split(csv, ",")
	probs := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("probability %q: %w", p, err)
		}
		probs[i] = v
	}
	return probs, nil
}

// startServer serves the real handler tree over httptest with a stub
// predictor and the built-in content.
func (tc *TestContext) startServer(labels, probs string, maxUploadMB int64) error {
	p, err := parseProbs(probs)
	if err != nil {
		return err
	}
	tc.Labels = parseLabels(labels)
	tc.Probs = p
	tc.Predictor = testutil.NewStubPredictor(tc.Labels, tc.Probs)

	f, err := content.Default()
	if err != nil {
		return err
	}
	table, err := f.Build(tc.Labels)
	if err != nil {
		return fmt.Errorf("build content: %w", err)
	}

	srv := server.NewServer(server.Config{
		MaxUploadMB:      maxUploadMB,
		WebSocketEnabled: true,
		Version:          "integration",
	}, demo.NewService(tc.Predictor, table))
	tc.Server = httptest.NewServer(srv.Handler())
	return nil
}

func (tc *TestContext) demoServerIsRunning(labels, probs string) error {
	return tc.startServer(labels, probs, 20)
}

func (tc *TestContext) demoServerIsRunningWithUploadLimit(labels, probs string, mb int) error {
	return tc.startServer(labels, probs, int64(mb))
}

func (tc *TestContext) classifierFailsWith(msg string) error {
	if tc.Predictor == nil {
		return errors.New("server is not running")
	}
	tc.Predictor.Err = errors.New(msg)
	return nil
}
