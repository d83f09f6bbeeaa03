package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
)

type fakeReminderStore struct {
	candidates []*repository.ReminderCandidate
	completed  map[int64]bool
}

func (f *fakeReminderStore) GetReminderCandidates(ctx context.Context) ([]*repository.ReminderCandidate, error) {
	return f.candidates, nil
}

func (f *fakeReminderStore) IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error) {
	return f.completed[habitID], nil
}

type notifyRecorder struct {
	calls []int64
	err   error
}

func (n *notifyRecorder) fn(telegramID int64, habitID int64, text string) error {
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, habitID)
	return nil
}

func reminderAt(timezone, hhmm string, freq domain.Frequency) *repository.ReminderCandidate {
	t := hhmm
	return &repository.ReminderCandidate{
		Habit: &domain.Habit{
			ID:           1,
			Name:         "Пить воду",
			Emoji:        "💧",
			Frequency:    freq,
			ReminderTime: &t,
			CreatedAt:    time.Date(2026, time.August, 24, 10, 0, 0, 0, time.UTC), // Monday
		},
		User: &domain.User{ID: 10, TelegramID: 100, Timezone: timezone},
	}
}

func newReminderFixture(store *fakeReminderStore, rec *notifyRecorder) *ReminderService {
	clk := &clock.Fixed{Instant: time.Date(2026, time.August, 28, 6, 0, 0, 0, time.UTC)}
	svc := NewReminderService(store, nil, clk)
	svc.SetNotifyFunc(rec.fn)
	return svc
}

func utc(h, m int) time.Time {
	return time.Date(2026, time.August, 28, h, m, 0, 0, time.UTC)
}

func TestTickExactMinuteMatch(t *testing.T) {
	tests := []struct {
		name  string
		tick  time.Time
		fires bool
	}{
		{"minute before", utc(5, 59), false},
		{"exact minute", utc(6, 0), true},
		{"minute after", utc(6, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 09:00 Moscow time is 06:00 UTC.
			store := &fakeReminderStore{
				candidates: []*repository.ReminderCandidate{reminderAt("Europe/Moscow", "09:00", domain.FrequencyDaily)},
				completed:  map[int64]bool{},
			}
			rec := &notifyRecorder{}
			svc := newReminderFixture(store, rec)

			svc.Tick(context.Background(), tt.tick)
			if got := len(rec.calls) == 1; got != tt.fires {
				t.Errorf("fired = %v, want %v", got, tt.fires)
			}
		})
	}
}

func TestTickUnknownTimezoneFallsBackToUTC(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("Mars/Olympus", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{},
	}
	rec := &notifyRecorder{}
	svc := newReminderFixture(store, rec)

	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 1 {
		t.Error("an unresolvable zone should behave as UTC")
	}
}

func TestTickAtMostOncePerDay(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{},
	}
	rec := &notifyRecorder{}
	svc := newReminderFixture(store, rec)

	svc.Tick(context.Background(), utc(6, 0))
	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 1 {
		t.Errorf("fired %d times, want 1", len(rec.calls))
	}
}

func TestTickFailedDeliveryRetries(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{},
	}
	rec := &notifyRecorder{err: errors.New("telegram 502")}
	svc := newReminderFixture(store, rec)

	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 0 {
		t.Fatal("delivery should have failed")
	}

	// The habit was not marked fired, so a later matching tick retries.
	rec.err = nil
	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 1 {
		t.Error("failed delivery must not consume the day's attempt")
	}
}

func TestTickSkipsCompletedToday(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{1: true},
	}
	rec := &notifyRecorder{}
	svc := newReminderFixture(store, rec)

	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 0 {
		t.Error("a habit already completed today must not be reminded")
	}
}

func TestTickHonorsFrequency(t *testing.T) {
	// 2026-08-28 is a Friday.
	tests := []struct {
		name  string
		freq  domain.Frequency
		fires bool
	}{
		{"daily", domain.FrequencyDaily, true},
		{"weekdays on friday", domain.FrequencyWeekdays, true},
		{"weekends on friday", domain.FrequencyWeekends, false},
		{"weekly off creation weekday", domain.FrequencyWeekly, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeReminderStore{
				candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", tt.freq)},
				completed:  map[int64]bool{},
			}
			rec := &notifyRecorder{}
			svc := newReminderFixture(store, rec)

			svc.Tick(context.Background(), utc(6, 0))
			if got := len(rec.calls) == 1; got != tt.fires {
				t.Errorf("fired = %v, want %v", got, tt.fires)
			}
		})
	}
}

func TestMarkCompletedSuppressesReminder(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{},
	}
	rec := &notifyRecorder{}
	svc := newReminderFixture(store, rec)

	svc.MarkCompleted(1, time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC))
	svc.Tick(context.Background(), utc(6, 0))
	if len(rec.calls) != 0 {
		t.Error("completion hook should suppress the day's reminder")
	}
}

func TestTickTemplateFallbackWithoutAI(t *testing.T) {
	store := &fakeReminderStore{
		candidates: []*repository.ReminderCandidate{reminderAt("UTC", "06:00", domain.FrequencyDaily)},
		completed:  map[int64]bool{},
	}

	var gotText string
	clk := &clock.Fixed{Instant: utc(6, 0)}
	svc := NewReminderService(store, nil, clk)
	svc.SetNotifyFunc(func(telegramID, habitID int64, text string) error {
		gotText = text
		return nil
	})

	svc.Tick(context.Background(), utc(6, 0))
	if gotText == "" {
		t.Fatal("reminder not delivered")
	}
	for _, want := range []string{"💧", "Пить воду"} {
		if !strings.Contains(gotText, want) {
			t.Errorf("template text %q missing %q", gotText, want)
		}
	}
}
