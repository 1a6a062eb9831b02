package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/chi1180/better-hac/internal/config"
	"github.com/chi1180/better-hac/internal/domain"
)

func readEvent(ctx context.Context, t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read websocket event: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Failed to decode event %q: %v", data, err)
	}
	return ev
}

func TestWebSocket_SnapshotThenTransitions(t *testing.T) {
	_, upstream := newFakeUpstream(t)
	svc := newTestService(t, upstream.URL)

	m := NewMonitor(svc, config.MonitorConfig{
		CheckInterval:     time.Hour,
		IdleCheckInterval: time.Hour,
		MaxIdleTime:       time.Minute,
	})

	srv := httptest.NewServer(NewWebSocketHandler(svc, m))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "done")
	}()

	snapshot := readEvent(ctx, t, ws)
	if snapshot.Reason != "snapshot" {
		t.Errorf("Expected snapshot first, got %q", snapshot.Reason)
	}
	if snapshot.State != domain.StateAnonymous {
		t.Errorf("Expected anonymous snapshot, got %s", snapshot.State)
	}

	if err := svc.Login(ctx, "kid@example.com", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	ev := readEvent(ctx, t, ws)
	if ev.State != domain.StateActive || ev.Reason != "login" {
		t.Errorf("Expected active/login event, got %s/%q", ev.State, ev.Reason)
	}
}
