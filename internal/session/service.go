// Package session owns the durable session record and its lifecycle:
// Anonymous -> Active -> Expiring -> Expired. Both the periodic validity
// check and the 401/403 interceptor drive the Expired transition through
// the same Expire path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chi1180/better-hac/internal/domain"
	"github.com/chi1180/better-hac/internal/proxy"
	"github.com/chi1180/better-hac/internal/store"
)

// Session-record keys in the flat key-value store.
const (
	keyAuthenticated = "authenticated"
	keyUserEmail     = "user_email"
	keyLastActivity  = "last_activity"
	keyActiveTab     = "active_tab"
)

// Event is a session state transition, pushed to monitor subscribers.
type Event struct {
	State  domain.SessionState `json:"state"`
	Reason string              `json:"reason,omitempty"`
	At     time.Time           `json:"at"`
}

// Service manages the session record and talks to the upstream service for
// login and validity probes. Construct once at startup and share.
type Service struct {
	repo         store.Repository
	baseURL      string
	client       *http.Client
	checkTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	state    domain.SessionState
	onChange func(Event)
}

// NewService creates a session service against the given upstream base URL.
// The service keeps its own cookie jar for the upstream session cookie and
// watches every response for 401/403.
func NewService(ctx context.Context, repo store.Repository, baseURL string, checkTimeout time.Duration) (*Service, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	s := &Service{
		repo:         repo,
		baseURL:      strings.TrimRight(baseURL, "/"),
		checkTimeout: checkTimeout,
		now:          time.Now,
		state:        domain.StateAnonymous,
	}
	s.client = &http.Client{
		Jar:       jar,
		Transport: &authTransport{base: http.DefaultTransport, onUnauthorized: s.handleUnauthorized},
	}

	// Restore state from the durable record so the session survives restarts.
	authenticated, err := s.CheckAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session state: %w", err)
	}
	if authenticated {
		s.state = domain.StateActive
	}

	return s, nil
}

// authTransport watches authenticated calls for 401/403 and triggers the
// reactive expiry path. Login responses are exempt: a rejected login is a
// credential failure, not an expired session.
type authTransport struct {
	base           http.RoundTripper
	onUnauthorized func()
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && req.URL.Path != proxy.LoginPath &&
		(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		t.onUnauthorized()
	}
	return resp, err
}

func (s *Service) handleUnauthorized() {
	s.mu.Lock()
	active := s.state == domain.StateActive || s.state == domain.StateExpiring
	s.mu.Unlock()
	if !active {
		return
	}

	slog.Warn("Session rejected by upstream, forcing logout")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Expire(ctx, "unauthorized response"); err != nil {
		slog.Error("Failed to expire session after 401/403", "error", err)
	}
}

// HTTPClient returns the client outbound domain calls must share: it holds
// the upstream session cookie jar and the 401/403 interceptor. A call made
// through any other client goes out without the session cookie.
func (s *Service) HTTPClient() *http.Client {
	return s.client
}

// SetOnChange registers the state-transition callback. Set once, before the
// monitor starts.
func (s *Service) SetOnChange(fn func(Event)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Service) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) transition(state domain.SessionState, reason string) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	fn := s.onChange
	s.mu.Unlock()

	slog.Info("Session state changed", "state", state, "reason", reason)
	if fn != nil {
		fn(Event{State: state, Reason: reason, At: s.now()})
	}
}

// Login submits credentials upstream. On success the session record becomes
// authenticated with the given email and a fresh activity stamp; on failure
// nothing is mutated.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+proxy.LoginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}

	if err := s.repo.SetValue(ctx, keyAuthenticated, "true"); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.repo.SetValue(ctx, keyUserEmail, email); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.stampActivity(ctx); err != nil {
		return err
	}

	s.transition(domain.StateActive, "login")
	return nil
}

// Logout clears the entire session record, the tab preference included.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.clearRecord(ctx); err != nil {
		return err
	}
	s.transition(domain.StateAnonymous, "logout")
	return nil
}

// Expire clears the record like Logout but lands in the Expired state. Both
// the monitor's validity check and the 401/403 interceptor end up here.
func (s *Service) Expire(ctx context.Context, reason string) error {
	if err := s.clearRecord(ctx); err != nil {
		return err
	}
	s.transition(domain.StateExpired, reason)
	return nil
}

func (s *Service) clearRecord(ctx context.Context) error {
	if err := s.repo.DeleteValues(ctx, keyAuthenticated, keyUserEmail, keyLastActivity, keyActiveTab); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}

// CheckAuth reads the authenticated flag. No network involved.
func (s *Service) CheckAuth(ctx context.Context) (bool, error) {
	value, ok, err := s.repo.GetValue(ctx, keyAuthenticated)
	if err != nil {
		return false, err
	}
	return ok && value == "true", nil
}

// GetUser returns the authenticated user, or nil when anonymous.
func (s *Service) GetUser(ctx context.Context) (*domain.User, error) {
	email, ok, err := s.repo.GetValue(ctx, keyUserEmail)
	if err != nil || !ok {
		return nil, err
	}
	return &domain.User{Email: email}, nil
}

// CheckSessionValidity probes the upstream dashboard with a short timeout.
// True only for an exact 200; any error or timeout is false. The record is
// not mutated on failure; callers decide whether to expire.
func (s *Service) CheckSessionValidity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+proxy.DashboardPath, nil)
	if err != nil {
		slog.Error("Failed to build session check request", "error", err)
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("Session check failed", "error", err)
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	if err := s.UpdateLastActivity(ctx); err != nil {
		slog.Warn("Failed to refresh activity after session check", "error", err)
	}
	return true
}

// UpdateLastActivity stamps the current time and clears a pending idle
// warning.
func (s *Service) UpdateLastActivity(ctx context.Context) error {
	if err := s.stampActivity(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	expiring := s.state == domain.StateExpiring
	s.mu.Unlock()
	if expiring {
		s.transition(domain.StateActive, "activity")
	}
	return nil
}

func (s *Service) stampActivity(ctx context.Context) error {
	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.repo.SetValue(ctx, keyLastActivity, millis); err != nil {
		return fmt.Errorf("stamp activity: %w", err)
	}
	return nil
}

// IsSessionIdle reports whether the session has been inactive for longer
// than maxIdle. No recorded activity counts as idle. Elapsed time equal to
// maxIdle is not yet idle; the threshold is strictly exceeded.
func (s *Service) IsSessionIdle(ctx context.Context, maxIdle time.Duration) (bool, error) {
	value, ok, err := s.repo.GetValue(ctx, keyLastActivity)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return true, nil
	}
	return s.now().Sub(time.UnixMilli(millis)) > maxIdle, nil
}

// MarkExpiring raises the dismissible idle warning. Only an Active session
// can start expiring.
func (s *Service) MarkExpiring() {
	s.mu.Lock()
	active := s.state == domain.StateActive
	s.mu.Unlock()
	if active {
		s.transition(domain.StateExpiring, "idle")
	}
}

// Record returns the current session record.
func (s *Service) Record(ctx context.Context) (*domain.SessionRecord, error) {
	rec := &domain.SessionRecord{}

	authenticated, err := s.CheckAuth(ctx)
	if err != nil {
		return nil, err
	}
	rec.Authenticated = authenticated

	if email, ok, err := s.repo.GetValue(ctx, keyUserEmail); err != nil {
		return nil, err
	} else if ok {
		rec.UserEmail = email
	}

	if value, ok, err := s.repo.GetValue(ctx, keyLastActivity); err != nil {
		return nil, err
	} else if ok {
		if millis, parseErr := strconv.ParseInt(value, 10, 64); parseErr == nil {
			rec.LastActivityAt = millis
		}
	}

	return rec, nil
}

// SetActiveTab persists the UI tab preference.
func (s *Service) SetActiveTab(ctx context.Context, tab string) error {
	return s.repo.SetValue(ctx, keyActiveTab, tab)
}

// ActiveTab returns the UI tab preference, empty when unset.
func (s *Service) ActiveTab(ctx context.Context) (string, error) {
	value, _, err := s.repo.GetValue(ctx, keyActiveTab)
	return value, err
}
