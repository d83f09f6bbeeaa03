package dialog

import (
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
)

// TimeoutMonitor enforces the inactivity window on dialogue sessions.
// It runs before any event reaches the state machine.
type TimeoutMonitor struct {
	store   *Store
	timeout time.Duration
	clk     clock.Clock
}

func NewTimeoutMonitor(store *Store, timeout time.Duration, clk clock.Clock) *TimeoutMonitor {
	return &TimeoutMonitor{store: store, timeout: timeout, clk: clk}
}

// Check reports whether the user's session just expired. An expired
// session is cleared and the triggering event must be dropped, not
// retried. A live session gets its activity stamp refreshed.
func (m *TimeoutMonitor) Check(userID int64) bool {
	s, ok := m.store.Get(userID)
	if !ok {
		return false
	}

	now := m.clk.Now()

	// A brand-new session without an activity stamp is never expired.
	if s.LastActivity.IsZero() {
		s.LastActivity = now
		return false
	}

	if now.Sub(s.LastActivity) > m.timeout {
		m.store.Clear(userID)
		return true
	}

	s.LastActivity = now
	return false
}

func (m *TimeoutMonitor) Timeout() time.Duration { return m.timeout }
