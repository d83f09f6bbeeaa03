package clock

import (
	"log"
	"time"
)

// Clock supplies the current instant so dialogue timeouts, streak checks
// and the reminder tick can run against a fixed time in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	Instant time.Time
}

func (f *Fixed) Now() time.Time { return f.Instant }

func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }

// UserLocation resolves an IANA zone name, falling back to UTC when the
// stored name is invalid or empty.
func UserLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Unknown timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}

// DateOf truncates an instant to its calendar date in the given location.
func DateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween returns the whole calendar days from a to b (b after a).
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
