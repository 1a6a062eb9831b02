package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// WebSocketHandler streams session state transitions to the SPA so the idle
// warning and forced-logout redirect render without polling.
type WebSocketHandler struct {
	svc     *Service
	monitor *Monitor
}

// NewWebSocketHandler creates the session event stream handler.
func NewWebSocketHandler(svc *Service, monitor *Monitor) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, monitor: monitor}
}

// ServeHTTP upgrades the connection and replays the current state followed
// by every transition until the client or the monitor goes away.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept session WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close session websocket", "error", closeErr)
		}
	}()

	id, events := h.monitor.Subscribe()
	defer h.monitor.Unsubscribe(id)

	ctx := r.Context()
	slog.Info("Session WebSocket connected", "subscriber", id, "ip", r.RemoteAddr)

	// Snapshot first so a reconnecting client converges immediately.
	snapshot := Event{State: h.svc.State(), Reason: "snapshot", At: time.Now()}
	if err := writeEvent(ctx, ws, snapshot); err != nil {
		slog.Debug("Failed to send session snapshot", "error", err)
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("Session WebSocket write failed", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
