package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chi1180/better-hac/internal/config"
	"github.com/chi1180/better-hac/internal/domain"
	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Monitor runs the two session timers: a validity check on a long interval
// that forces expiry on failure, and an idle check on a short interval that
// only raises the dismissible warning. Activity reported by the SPA clears
// the warning immediately, independent of either timer.
type Monitor struct {
	svc *Service
	cfg config.MonitorConfig

	mu   sync.Mutex
	subs map[uuid.UUID]chan Event

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor for the given service and registers itself
// as the state-transition fan-out.
func NewMonitor(svc *Service, cfg config.MonitorConfig) *Monitor {
	m := &Monitor{
		svc:  svc,
		cfg:  cfg,
		subs: make(map[uuid.UUID]chan Event),
	}
	svc.SetOnChange(m.broadcast)
	return m
}

// Start launches the timer loop. It stops when ctx is cancelled or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx)
	slog.Info("Session monitor started",
		"check_interval", m.cfg.CheckInterval,
		"idle_check_interval", m.cfg.IdleCheckInterval,
		"max_idle_time", m.cfg.MaxIdleTime)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	validity := time.NewTicker(m.cfg.CheckInterval)
	defer validity.Stop()
	idle := time.NewTicker(m.cfg.IdleCheckInterval)
	defer idle.Stop()

	for {
		select {
		case <-validity.C:
			m.checkValidity(ctx)
		case <-idle.C:
			m.checkIdle(ctx)
		case <-ctx.Done():
			slog.Info("Session monitor shutting down", "reason", ctx.Err())
			return
		}
	}
}

// Stop tears down the timers and closes every subscriber channel together.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}

func (m *Monitor) checkValidity(ctx context.Context) {
	authenticated, err := m.svc.CheckAuth(ctx)
	if err != nil {
		slog.Error("Session monitor failed to read auth flag", "error", err)
		return
	}
	if !authenticated {
		return
	}

	if m.svc.CheckSessionValidity(ctx) {
		return
	}

	slog.Warn("Session no longer valid, forcing logout")
	if err := m.svc.Expire(ctx, "validity check failed"); err != nil {
		slog.Error("Failed to expire invalid session", "error", err)
	}
}

func (m *Monitor) checkIdle(ctx context.Context) {
	if m.svc.State() != domain.StateActive {
		return
	}

	idle, err := m.svc.IsSessionIdle(ctx, m.cfg.MaxIdleTime)
	if err != nil {
		slog.Error("Session monitor failed to read idle state", "error", err)
		return
	}
	if idle {
		m.svc.MarkExpiring()
	}
}

// Activity refreshes the activity stamp and clears a pending warning. The
// local API calls this when the SPA reports pointer-down, key-down, scroll,
// or touch-start events.
func (m *Monitor) Activity(ctx context.Context) error {
	return m.svc.UpdateLastActivity(ctx)
}

// DismissWarning clears the idle warning without waiting for new input.
// Dismissal counts as activity.
func (m *Monitor) DismissWarning(ctx context.Context) error {
	return m.Activity(ctx)
}

// Subscribe registers a state-transition listener.
func (m *Monitor) Subscribe() (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	m.subs[id] = ch
	m.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (m *Monitor) Unsubscribe(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}

func (m *Monitor) broadcast(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber, drop rather than stall the transition.
		}
	}
}
