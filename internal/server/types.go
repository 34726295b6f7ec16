package server

import (
	"context"
	"net/http"

	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/rank"
)

// analyzer is the part of demo.Service the server needs.
type analyzer interface {
	Analyze(ctx context.Context, raw []byte, infoLabel string) (*demo.Interaction, error)
	Content(label string) demo.Panel
	Labels() []string
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	svc              analyzer
	corsOrigin       string
	maxUploadMB      int64
	websocketEnabled bool
	version          string
}

// Config holds server configuration.
type Config struct {
	Host             string
	Port             int
	CORSOrigin       string
	MaxUploadMB      int64
	TimeoutSec       int
	WebSocketEnabled bool
	Version          string
}

// NewServer creates a server around an analysis service.
func NewServer(config Config, svc analyzer) *Server {
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	origin := config.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	return &Server{
		svc:              svc,
		corsOrigin:       origin,
		maxUploadMB:      maxUpload,
		websocketEnabled: config.WebSocketEnabled,
		version:          config.Version,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Labels  int    `json:"labels"`
}

// LabelsResponse is returned by /labels.
type LabelsResponse struct {
	Labels []string `json:"labels"`
	Count  int      `json:"count"`
}

// RankedEntry is one row of the probability table.
type RankedEntry struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"`
	Predicted   bool    `json:"predicted"`
}

// ImageInfo describes the normalised input image.
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// ClassifyResult is the body of a successful classification.
type ClassifyResult struct {
	Label        string        `json:"label"`
	Confidence   float64       `json:"confidence"`
	Ranked       []RankedEntry `json:"ranked"`
	InfoLabel    string        `json:"info_label"`
	Panel        demo.Panel    `json:"panel"`
	Image        ImageInfo     `json:"image"`
	ProcessingMs int64         `json:"processing_ms"`
}

// ClassifyResponse wraps ClassifyResult for /classify.
type ClassifyResponse struct {
	Success   bool           `json:"success"`
	RequestID string         `json:"request_id,omitempty"`
	Result    ClassifyResult `json:"result"`
}

// ContentResponse is returned by /content.
type ContentResponse struct {
	Success bool       `json:"success"`
	Known   bool       `json:"known"`
	Panel   demo.Panel `json:"panel"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Error types reported in ErrorResponse.ErrorType.
const (
	errTypeInvalidRequest   = "invalid_request"
	errTypeUnsupportedMedia = "unsupported_media_type"
	errTypeTooLarge         = "too_large"
	errTypeDecode           = "decode_error"
	errTypePrediction       = "prediction_error"
)

func newClassifyResult(it *demo.Interaction) ClassifyResult {
	ranked := make([]RankedEntry, len(it.Ranked))
	for i, r := range it.Ranked {
		ranked[i] = RankedEntry{
			Label:       r.Label,
			Probability: r.Probability,
			Percent:     rank.Percent(r.Probability),
			Predicted:   r.Label == it.Prediction.Label,
		}
	}
	res := ClassifyResult{
		Label:        it.Prediction.Label,
		Confidence:   it.Prediction.Confidence(),
		Ranked:       ranked,
		InfoLabel:    it.InfoLabel,
		Panel:        it.Panel,
		ProcessingMs: it.Duration.Milliseconds(),
	}
	if it.Image != nil {
		res.Image = ImageInfo{Width: it.Image.Width, Height: it.Image.Height, Format: it.Image.Format}
	}
	return res
}

// SetupRoutes registers every endpoint on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.wrap(s.indexHandler))
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/labels", s.wrap(s.labelsHandler))
	mux.HandleFunc("/content", s.wrap(s.contentHandler))
	mux.HandleFunc("/classify", s.wrap(s.classifyHandler))
	mux.Handle("/metrics", metricsHandler())
	if s.websocketEnabled {
		mux.HandleFunc("/ws", s.requestIDMiddleware(s.classifyWebSocketHandler))
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.corsMiddleware(h))
}
