package clock

import (
	"testing"
	"time"
)

func TestUserLocation(t *testing.T) {
	if loc := UserLocation(""); loc != time.UTC {
		t.Errorf("empty zone = %v, want UTC", loc)
	}
	if loc := UserLocation("Nowhere/Atlantis"); loc != time.UTC {
		t.Errorf("unknown zone = %v, want UTC", loc)
	}
	if loc := UserLocation("Europe/Moscow"); loc.String() != "Europe/Moscow" {
		t.Errorf("valid zone = %v", loc)
	}
}

func TestDateOf(t *testing.T) {
	moscow := UserLocation("Europe/Moscow")

	// 22:30 UTC is already the next day in Moscow (UTC+3).
	instant := time.Date(2026, time.August, 27, 22, 30, 0, 0, time.UTC)
	got := DateOf(instant, moscow)
	want := time.Date(2026, time.August, 28, 0, 0, 0, 0, moscow)
	if !got.Equal(want) {
		t.Errorf("DateOf = %v, want %v", got, want)
	}

	if got := DateOf(instant, time.UTC); got.Day() != 27 {
		t.Errorf("UTC date day = %d, want 27", got.Day())
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		a, b time.Time
		want int
	}{
		{
			time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC),
			0,
		},
		{
			time.Date(2026, time.August, 27, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC),
			1,
		},
		{
			time.Date(2026, time.August, 26, 23, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 28, 1, 0, 0, 0, time.UTC),
			2,
		},
		{
			// Month boundary.
			time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC),
			3,
		},
	}

	for _, tt := range tests {
		if got := DaysBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("DaysBetween(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFixedAdvance(t *testing.T) {
	clk := &Fixed{Instant: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	clk.Advance(90 * time.Minute)
	if got := clk.Now(); got.Hour() != 13 || got.Minute() != 30 {
		t.Errorf("advanced to %v, want 13:30", got)
	}
}
