package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/vislabel/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyRequest(t *testing.T, filename, contentType string, data []byte, fields map[string]string, query string) *http.Request {
	t.Helper()
	body, ct := testutil.MultipartImage(t, "image", filename, contentType, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/classify"+query, body)
	req.Header.Set("Content-Type", ct)
	return req
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 3, resp.Labels)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestLabelsHandler(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/labels", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LabelsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, testLabels, resp.Labels)
	assert.Equal(t, 3, resp.Count)
}

func TestContentHandler(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})

	cases := []struct {
		name   string
		query  string
		status int
		known  bool
		texts  int
		videos int
	}{
		{"known with content", "?label=hand", http.StatusOK, true, 2, 2},
		{"known without content", "?label=foot", http.StatusOK, true, 0, 0},
		{"unknown", "?label=nose", http.StatusOK, false, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/content"+tc.query, nil))
			require.Equal(t, tc.status, w.Code)

			var resp ContentResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.True(t, resp.Success)
			assert.Equal(t, tc.known, resp.Known)
			assert.Len(t, resp.Panel.Texts, tc.texts)
			assert.Len(t, resp.Panel.Videos, tc.videos)
		})
	}
}

func TestContentHandler_MissingLabel(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/content", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, errTypeInvalidRequest, resp.ErrorType)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClassifyHandler_JSON(t *testing.T) {
	srv, stub := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, classifyRequest(t, "hand.png", "image/png", pngBytes(t), nil, ""))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ClassifyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)

	res := resp.Result
	assert.Equal(t, "hand", res.Label)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, "hand", res.InfoLabel)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, []string{"hand", "foot", "eye"}, []string{res.Ranked[0].Label, res.Ranked[1].Label, res.Ranked[2].Label})
	assert.Equal(t, "70.00%", res.Ranked[0].Percent)
	assert.True(t, res.Ranked[0].Predicted)
	assert.False(t, res.Ranked[1].Predicted)

	assert.Equal(t, ImageInfo{Width: 8, Height: 6, Format: "png"}, res.Image)
	assert.Len(t, res.Panel.Texts, 2)
	require.Len(t, res.Panel.Videos, 2)
	assert.Equal(t, "https://img.youtube.com/vi/6J11hReO3oE/hqdefault.jpg", res.Panel.Videos[0].Thumbnail)
	assert.Empty(t, res.Panel.Videos[1].Thumbnail)

	assert.Len(t, stub.Calls(), 1)
}

func TestClassifyHandler_ExplicitLabel(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	req := classifyRequest(t, "x.png", "image/png", pngBytes(t), map[string]string{"label": "eye"}, "")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ClassifyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "hand", resp.Result.Label)
	assert.Equal(t, "eye", resp.Result.InfoLabel)
	assert.Equal(t, []string{"눈은 빛을 본다."}, resp.Result.Panel.Texts)
}

func TestClassifyHandler_HTML(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, classifyRequest(t, "x.png", "image/png", pngBytes(t), nil, "?format=html"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<h2>hand</h2>")
	assert.Contains(t, body, "70.00%")
	assert.Contains(t, body, "hqdefault.jpg")
	assert.Contains(t, body, `<option value="hand" selected>`)
	assert.NotContains(t, body, `class="empty"`)
}

func TestClassifyHandler_HTMLEmptyPanel(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	req := classifyRequest(t, "x.png", "image/png", pngBytes(t), map[string]string{"label": "foot"}, "?format=html")
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<h2>hand</h2>")
	assert.Contains(t, body, `<h3>foot</h3>`)
	assert.Contains(t, body, "<code>foot</code>에 대한 콘텐츠가 아직 없습니다.")
}

func TestClassifyHandler_Errors(t *testing.T) {
	cases := []struct {
		name        string
		req         func(t *testing.T) *http.Request
		predictErr  error
		status      int
		errType     string
		wantMessage string
	}{
		{
			name: "unsupported type",
			req: func(t *testing.T) *http.Request {
				return classifyRequest(t, "x.gif", "image/gif", []byte("GIF89a"), nil, "")
			},
			status:  http.StatusUnsupportedMediaType,
			errType: errTypeUnsupportedMedia,
		},
		{
			name: "undecodable bytes",
			req: func(t *testing.T) *http.Request {
				return classifyRequest(t, "x.jpg", "image/jpeg", []byte("not an image"), nil, "")
			},
			status:      http.StatusBadRequest,
			errType:     errTypeDecode,
			wantMessage: "could not read image",
		},
		{
			name: "missing file",
			req: func(t *testing.T) *http.Request {
				body, ct := testutil.MultipartImage(t, "other", "x.png", "image/png", pngBytes(t), nil)
				req := httptest.NewRequest(http.MethodPost, "/classify", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			status:  http.StatusBadRequest,
			errType: errTypeInvalidRequest,
		},
		{
			name: "prediction failure",
			req: func(t *testing.T) *http.Request {
				return classifyRequest(t, "x.png", "image/png", pngBytes(t), nil, "")
			},
			predictErr:  errors.New("session exploded"),
			status:      http.StatusInternalServerError,
			errType:     errTypePrediction,
			wantMessage: "classification failed",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, stub := newTestServer(t, []float64{0.1, 0.2, 0.7})
			stub.Err = tc.predictErr

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, tc.req(t))
			require.Equal(t, tc.status, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			if tc.errType != "" {
				assert.Equal(t, tc.errType, resp.ErrorType)
			}
			if tc.wantMessage != "" {
				assert.Contains(t, resp.Error, tc.wantMessage)
			}
		})
	}
}

func TestClassifyHandler_OctetStreamFallsBackToExtension(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, classifyRequest(t, "snap.png", "", pngBytes(t), nil, ""))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestClassifyHandler_TooLarge(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	big := bytes.Repeat([]byte{0xff}, 2*1024*1024)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, classifyRequest(t, "big.png", "image/png", big, nil, ""))

	assert.True(t, w.Code == http.StatusRequestEntityTooLarge || w.Code == http.StatusBadRequest, "got %d", w.Code)
}

func TestClassifyHandler_HTMLError(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, classifyRequest(t, "x.jpg", "image/jpeg", []byte("nope"), nil, "?format=html"))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `class="error"`)
}

func TestClassifyHandler_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/classify", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestIndexHandler(t *testing.T) {
	srv, _ := newTestServer(t, []float64{0.1, 0.2, 0.7})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "eye, foot, hand")
	assert.Contains(t, body, `action="/classify?format=html"`)
	assert.Contains(t, body, "WebSocket")
	// Camera results render like the form result and the label select drives
	// the content control frame.
	assert.Contains(t, body, `addEventListener("change", sendLabel)`)
	assert.Contains(t, body, `JSON.stringify({ type: "label", label: select.value })`)
	assert.Contains(t, body, `"prob-row highlight"`)
	assert.Contains(t, body, "v.thumbnail")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexHandler_NoWebSocket(t *testing.T) {
	svc, _ := newTestService(t, []float64{0.1, 0.2, 0.7})
	srv := NewServer(Config{}, svc)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, strings.Contains(w.Body.String(), "new WebSocket"))

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewServer_Defaults(t *testing.T) {
	svc, _ := newTestService(t, []float64{0.1, 0.2, 0.7})
	srv := NewServer(Config{}, svc)
	assert.Equal(t, int64(20), srv.maxUploadMB)
	assert.Equal(t, "*", srv.corsOrigin)
	assert.False(t, srv.websocketEnabled)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, errTypeDecode, errorType(http.StatusBadRequest))
	assert.Equal(t, errTypeUnsupportedMedia, errorType(http.StatusUnsupportedMediaType))
	assert.Equal(t, errTypePrediction, errorType(http.StatusInternalServerError))
}
