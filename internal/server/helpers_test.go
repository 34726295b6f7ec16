package server

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/vislabel/internal/content"
	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/testutil"
)

var testLabels = []string{"eye", "foot", "hand"}

func newTestService(t *testing.T, probs []float64) (*demo.Service, *testutil.StubPredictor) {
	t.Helper()
	stub := testutil.NewStubPredictor(testLabels, probs)
	table := content.NewTable(map[string]content.Bundle{
		"hand": {
			Texts:  []string{"손은 물건을 잡는다.", "손가락은 다섯 개다."},
			Images: []string{"https://example.com/hand.png"},
			Videos: []string{"https://www.youtube.com/shorts/6J11hReO3oE", "https://example.com/clip.mp4"},
		},
		"eye": {Texts: []string{"눈은 빛을 본다."}},
	})
	return demo.NewService(stub, table), stub
}

func newTestServer(t *testing.T, probs []float64) (*Server, *testutil.StubPredictor) {
	t.Helper()
	svc, stub := newTestService(t, probs)
	srv := NewServer(Config{MaxUploadMB: 1, WebSocketEnabled: true, Version: "test"}, svc)
	return srv, stub
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.SolidImage(8, 6, color.NRGBA{R: 200, G: 10, B: 10, A: 255}))
}
