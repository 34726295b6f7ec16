package server

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Labels    []string
	Result    *ClassifyResult
	Error     string
	WebSocket bool
}

// indexHandler serves the upload and camera page.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.renderIndex(w, r, http.StatusOK, pageData{})
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Labels = s.svc.Labels()
	data.WebSocket = s.websocketEnabled

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		slog.Error("render page", "request_id", requestID(r.Context()), "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
