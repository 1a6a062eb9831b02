package domain

import "time"

// SessionState describes where a session sits in its lifecycle.
// Both the timer-based validity check and the 401/403 interceptor drive
// the same Expired transition.
type SessionState string

const (
	StateAnonymous SessionState = "anonymous"
	StateActive    SessionState = "active"
	StateExpiring  SessionState = "expiring" // idle warning raised, dismissible
	StateExpired   SessionState = "expired"
)

// SessionRecord is the durable client-session state the server keeps on
// behalf of the SPA. Invariant: UserEmail is set iff Authenticated is true.
type SessionRecord struct {
	Authenticated  bool   `json:"authenticated"`
	UserEmail      string `json:"userEmail,omitempty"`
	LastActivityAt int64  `json:"lastActivityAt,omitempty"` // epoch milliseconds, 0 = never
}

// User is the authenticated identity exposed to the UI.
type User struct {
	Email string `json:"email"`
}

// IdleFor reports how long the session has been without tracked activity.
// Returns (0, false) when no activity was ever recorded.
func (r *SessionRecord) IdleFor(now time.Time) (time.Duration, bool) {
	if r.LastActivityAt == 0 {
		return 0, false
	}
	last := time.UnixMilli(r.LastActivityAt)
	return now.Sub(last), true
}
