package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"time"

	"github.com/MeKo-Tech/vislabel/internal/demo"
	"github.com/MeKo-Tech/vislabel/internal/imageio"
)

const (
	formatJSON = "json"
	formatHTML = "html"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Labels:  len(s.svc.Labels()),
	})
}

// labelsHandler lists the classifier's labels in model order.
func (s *Server) labelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	labels := s.svc.Labels()
	writeJSON(w, http.StatusOK, LabelsResponse{Labels: labels, Count: len(labels)})
}

// contentHandler returns the content panel for ?label=. Unknown labels get
// an empty panel, not an error.
func (s *Server) contentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	label := r.URL.Query().Get("label")
	if label == "" {
		s.writeErrorResponse(w, r, "missing label parameter", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ContentResponse{
		Success: true,
		Known:   slices.Contains(s.svc.Labels(), label),
		Panel:   s.svc.Content(label),
	})
}

// classifyHandler accepts a multipart upload in field "image" and returns
// the prediction, ranked probabilities and content panel.
func (s *Server) classifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	format := r.URL.Query().Get("format")

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, format, "File too large", errTypeTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		s.fail(w, r, format, "Failed to parse form data", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	if f := r.FormValue("format"); f != "" {
		format = f
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.fail(w, r, format, "No image file provided", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if !acceptedUpload(header) {
		s.fail(w, r, format, "Unsupported file type: "+header.Filename, errTypeUnsupportedMedia, http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, format, "Failed to read image data", errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	it, status, err := s.analyze(r.Context(), data, r.FormValue("label"), "upload")
	if err != nil {
		s.fail(w, r, format, err.Error(), errorType(status), status)
		return
	}

	res := newClassifyResult(it)
	if format == formatHTML {
		s.renderIndex(w, r, http.StatusOK, pageData{Result: &res})
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{Success: true, RequestID: requestID(r.Context()), Result: res})
}

// analyze runs the service and maps failures to an HTTP status.
func (s *Server) analyze(ctx context.Context, data []byte, label, source string) (*demo.Interaction, int, error) {
	start := time.Now()
	it, err := s.svc.Analyze(ctx, data, label)
	classifyDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	if err != nil {
		var decErr *imageio.DecodeError
		if errors.As(err, &decErr) {
			classifyRequestsTotal.WithLabelValues(source, errTypeDecode).Inc()
			return nil, http.StatusBadRequest, fmt.Errorf("could not read image: %w", err)
		}
		classifyRequestsTotal.WithLabelValues(source, errTypePrediction).Inc()
		slog.Error("classification failed", "request_id", requestID(ctx), "error", err)
		return nil, http.StatusInternalServerError, fmt.Errorf("classification failed: %w", err)
	}

	classifyRequestsTotal.WithLabelValues(source, "success").Inc()
	predictionsTotal.WithLabelValues(it.Prediction.Label).Inc()
	slog.Info("image classified",
		"request_id", requestID(ctx),
		"source", source,
		"label", it.Prediction.Label,
		"confidence", it.Prediction.Confidence(),
		"duration_ms", it.Duration.Milliseconds())
	return it, http.StatusOK, nil
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return errTypeDecode
	case http.StatusUnsupportedMediaType:
		return errTypeUnsupportedMedia
	default:
		return errTypePrediction
	}
}

// acceptedUpload checks the part's Content-Type, falling back to the file
// extension when the client sent a generic type.
func acceptedUpload(h *multipart.FileHeader) bool {
	ct := h.Header.Get("Content-Type")
	if imageio.IsSupportedContentType(ct) {
		return true
	}
	if ct == "" || ct == "application/octet-stream" {
		return imageio.IsSupportedFile(h.Filename)
	}
	return false
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, format, message, errType string, status int) {
	if format == formatHTML {
		s.renderIndex(w, r, status, pageData{Error: message})
		return
	}
	s.writeErrorResponse(w, r, message, errType, status)
}

// writeErrorResponse writes the JSON error envelope.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message, errType string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
		RequestID: requestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
