package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketControl is a text frame sent by the client. Type "label" picks
// the label whose content is shown for the following snapshots.
type WebSocketControl struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// WebSocketResponse is sent for every frame the client sends.
type WebSocketResponse struct {
	Type      string           `json:"type"`   // "result", "content" or "error"
	Status    string           `json:"status"` // "completed" or "error"
	Result    *ClassifyResult  `json:"result,omitempty"`
	Content   *ContentResponse `json:"content,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// wsSession is the per-connection state. Binary frames are camera snapshots.
type wsSession struct {
	s         *Server
	conn      WebSocketConnWriter
	infoLabel string
}

// classifyWebSocketHandler streams camera snapshots over a WebSocket.
func (s *Server) classifyWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "request_id", requestID(r.Context()))

	maxBytes := s.maxUploadMB * 1024 * 1024
	conn.SetReadLimit(maxBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	sess := &wsSession{s: s, conn: conn}
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		sess.handle(r.Context(), messageType, data)
	}
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (ws *wsSession) handle(ctx context.Context, messageType int, data []byte) {
	id := uuid.NewString()
	switch messageType {
	case websocket.BinaryMessage:
		ws.snapshot(ctx, data, id)
	case websocket.TextMessage:
		ws.control(data, id)
	}
}

func (ws *wsSession) snapshot(ctx context.Context, data []byte, id string) {
	if len(data) == 0 {
		ws.sendError(errTypeInvalidRequest, "empty frame", id)
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	it, status, err := ws.s.analyze(ctx, data, ws.infoLabel, "websocket")
	if err != nil {
		ws.sendError(errorType(status), err.Error(), id)
		return
	}

	res := newClassifyResult(it)
	ws.send(WebSocketResponse{Type: "result", Status: "completed", Result: &res, RequestID: id})
}

func (ws *wsSession) control(data []byte, id string) {
	var msg WebSocketControl
	if err := json.Unmarshal(data, &msg); err != nil {
		ws.sendError(errTypeInvalidRequest, fmt.Sprintf("Failed to parse request: %v", err), id)
		return
	}
	switch msg.Type {
	case "label":
		known := slices.Contains(ws.s.svc.Labels(), msg.Label)
		if known || msg.Label == "" {
			ws.infoLabel = msg.Label
		}
		ws.send(WebSocketResponse{
			Type:      "content",
			Status:    "completed",
			Content:   &ContentResponse{Success: true, Known: known, Panel: ws.s.svc.Content(msg.Label)},
			RequestID: id,
		})
	default:
		ws.sendError(errTypeInvalidRequest, "Unsupported request type: "+msg.Type, id)
	}
}

func (ws *wsSession) sendError(errType, message, id string) {
	ws.send(WebSocketResponse{Type: "error", Status: "error", Error: message, ErrorType: errType, RequestID: id})
}

func (ws *wsSession) send(resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		slog.Error("Failed to set WebSocket write deadline", "error", err)
		return
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
