package dialog

import (
	"testing"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
)

func newTestMonitor(timeout time.Duration) (*TimeoutMonitor, *Store, *clock.Fixed) {
	store := NewStore()
	clk := &clock.Fixed{Instant: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	return NewTimeoutMonitor(store, timeout, clk), store, clk
}

func TestTimeoutNoSession(t *testing.T) {
	m, _, _ := newTestMonitor(10 * time.Minute)
	if m.Check(1) {
		t.Error("no session should never report expiry")
	}
}

func TestTimeoutBoundary(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		expired bool
	}{
		{"one minute in", time.Minute, false},
		{"just under", 10*time.Minute - time.Second, false},
		{"exactly at timeout", 10 * time.Minute, false},
		{"one second over", 10*time.Minute + time.Second, true},
		{"one minute over", 11 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, clk := newTestMonitor(10 * time.Minute)
			store.Create(1, clk.Now())

			clk.Advance(tt.elapsed)
			if got := m.Check(1); got != tt.expired {
				t.Errorf("Check after %v = %v, want %v", tt.elapsed, got, tt.expired)
			}

			_, alive := store.Get(1)
			if alive == tt.expired {
				t.Errorf("session alive = %v after expiry = %v", alive, tt.expired)
			}
		})
	}
}

func TestTimeoutExpiryReportedOnce(t *testing.T) {
	m, store, clk := newTestMonitor(10 * time.Minute)
	store.Create(1, clk.Now())

	clk.Advance(15 * time.Minute)
	if !m.Check(1) {
		t.Fatal("session should expire")
	}
	if m.Check(1) {
		t.Error("a second check must not report expiry again")
	}
}

func TestTimeoutActivityRefresh(t *testing.T) {
	m, store, clk := newTestMonitor(10 * time.Minute)
	store.Create(1, clk.Now())

	// Keep poking every 9 minutes; the window slides and never closes.
	for i := 0; i < 5; i++ {
		clk.Advance(9 * time.Minute)
		if m.Check(1) {
			t.Fatalf("session expired on poke %d despite activity", i)
		}
	}

	if _, ok := store.Get(1); !ok {
		t.Error("session should still be alive")
	}
}

func TestTimeoutFreshSessionNeverExpires(t *testing.T) {
	m, store, clk := newTestMonitor(10 * time.Minute)
	s := store.Create(1, clk.Now())
	s.LastActivity = time.Time{}

	clk.Advance(24 * time.Hour)
	if m.Check(1) {
		t.Error("session without an activity stamp must not expire")
	}
	if s.LastActivity.IsZero() {
		t.Error("check should stamp the activity time")
	}
}
