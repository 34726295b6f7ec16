// Package support holds the step definitions for the HTTP API feature suite.
package support

import (
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/vislabel/internal/testutil"
	"github.com/gorilla/websocket"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	Labels []string
	Probs  []float64

	Predictor *testutil.StubPredictor
	Server    *httptest.Server

	// HTTP response state
	LastStatus  int
	LastBody    []byte
	LastHeaders http.Header

	// WebSocket state
	WS        *websocket.Conn
	LastFrame map[string]any
}

// NewTestContext creates an empty scenario context.
func NewTestContext() *TestContext {
	return &TestContext{}
}

// Cleanup stops the server and closes any WebSocket.
func (tc *TestContext) Cleanup() {
	if tc.WS != nil {
		_ = tc.WS.Close()
		tc.WS = nil
	}
	if tc.Server != nil {
		tc.Server.Close()
		tc.Server = nil
	}
}
