package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/dialog"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
)

type fakeHabitStore struct {
	habits  map[int64]*domain.Habit
	logs    map[string]*domain.HabitLog // key habitID|date
	updates int
	nextID  int64
}

func newFakeHabitStore() *fakeHabitStore {
	return &fakeHabitStore{
		habits: make(map[int64]*domain.Habit),
		logs:   make(map[string]*domain.HabitLog),
	}
}

func logKey(habitID int64, date time.Time) string {
	return fmt.Sprintf("%d#%s", habitID, date.Format("2006-01-02"))
}

func (f *fakeHabitStore) CreateHabit(ctx context.Context, habit *domain.Habit) error {
	f.nextID++
	habit.ID = f.nextID
	f.habits[habit.ID] = habit
	return nil
}

func (f *fakeHabitStore) GetHabitByID(ctx context.Context, id int64) (*domain.Habit, error) {
	h, ok := f.habits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return h, nil
}

func (f *fakeHabitStore) GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error) {
	var out []*domain.Habit
	for _, h := range f.habits {
		if h.UserID == userID && h.IsActive {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHabitStore) UpdateHabit(ctx context.Context, habit *domain.Habit) error {
	f.updates++
	f.habits[habit.ID] = habit
	return nil
}

func (f *fakeHabitStore) DeleteHabit(ctx context.Context, id int64) error {
	delete(f.habits, id)
	return nil
}

func (f *fakeHabitStore) UpsertLog(ctx context.Context, log *domain.HabitLog) error {
	f.logs[logKey(log.HabitID, log.Date)] = log
	return nil
}

func (f *fakeHabitStore) IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error) {
	l, ok := f.logs[logKey(habitID, date)]
	return ok && l.Status == domain.StatusCompleted, nil
}

func (f *fakeHabitStore) GetUserLogsForDate(ctx context.Context, userID int64, date time.Time) ([]*domain.HabitLog, error) {
	var out []*domain.HabitLog
	for _, l := range f.logs {
		if l.UserID == userID && l.Date.Equal(date) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeHabitStore) GetHabitStats(ctx context.Context, habitID int64) (*domain.HabitStats, error) {
	return &domain.HabitStats{HabitID: habitID}, nil
}

func (f *fakeHabitStore) GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	return &domain.UserStats{}, nil
}

func newHabitFixture() (*HabitService, *fakeHabitStore) {
	store := newFakeHabitStore()
	clk := &clock.Fixed{Instant: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	return NewHabitService(store, clk, NewUserLock()), store
}

func TestCreateFromDraft(t *testing.T) {
	svc, store := newHabitFixture()

	habit, err := svc.CreateFromDraft(context.Background(), 10, dialog.Draft{
		Name:      "Читать",
		Frequency: domain.FrequencyDaily,
	})
	if err != nil {
		t.Fatalf("CreateFromDraft: %v", err)
	}

	if habit.ID == 0 {
		t.Error("habit should get an id")
	}
	if !habit.IsActive {
		t.Error("new habit should be active")
	}
	if habit.Emoji != domain.DefaultEmoji {
		t.Errorf("empty emoji should default to %q, got %q", domain.DefaultEmoji, habit.Emoji)
	}
	if len(store.habits) != 1 {
		t.Errorf("stored %d habits, want 1", len(store.habits))
	}
}

func TestCompleteHabit(t *testing.T) {
	svc, store := newHabitFixture()
	user := &domain.User{ID: 10, Timezone: "UTC"}
	habit := &domain.Habit{ID: 1, UserID: 10, CurrentStreak: 4, BestStreak: 4, TotalDone: 20, IsActive: true}
	store.habits[1] = habit

	if err := svc.CompleteHabit(context.Background(), habit, user); err != nil {
		t.Fatalf("CompleteHabit: %v", err)
	}

	if habit.CurrentStreak != 5 {
		t.Errorf("streak = %d, want 5", habit.CurrentStreak)
	}
	if habit.BestStreak != 5 {
		t.Errorf("best = %d, want 5 (must track current)", habit.BestStreak)
	}
	if habit.TotalDone != 21 {
		t.Errorf("total = %d, want 21", habit.TotalDone)
	}

	// Completing the same local date again overwrites the log but leaves
	// every counter alone.
	if err := svc.CompleteHabit(context.Background(), habit, user); err != nil {
		t.Fatalf("repeat CompleteHabit: %v", err)
	}
	if habit.CurrentStreak != 5 || habit.TotalDone != 21 {
		t.Errorf("repeat completion changed counters: streak=%d total=%d", habit.CurrentStreak, habit.TotalDone)
	}
}

func TestCompleteHabitBestStreakPreserved(t *testing.T) {
	svc, store := newHabitFixture()
	user := &domain.User{ID: 10, Timezone: "UTC"}
	habit := &domain.Habit{ID: 1, UserID: 10, CurrentStreak: 2, BestStreak: 30, IsActive: true}
	store.habits[1] = habit

	if err := svc.CompleteHabit(context.Background(), habit, user); err != nil {
		t.Fatalf("CompleteHabit: %v", err)
	}
	if habit.BestStreak != 30 {
		t.Errorf("best = %d, want 30 untouched", habit.BestStreak)
	}
	if habit.CurrentStreak != 3 {
		t.Errorf("streak = %d, want 3", habit.CurrentStreak)
	}
}

func TestSkipHabitResetsStreak(t *testing.T) {
	svc, store := newHabitFixture()
	user := &domain.User{ID: 10, Timezone: "UTC"}
	habit := &domain.Habit{ID: 1, UserID: 10, CurrentStreak: 7, BestStreak: 9, IsActive: true}
	store.habits[1] = habit

	if err := svc.SkipHabit(context.Background(), habit, user); err != nil {
		t.Fatalf("SkipHabit: %v", err)
	}
	if habit.CurrentStreak != 0 {
		t.Errorf("streak = %d, want 0 after skip", habit.CurrentStreak)
	}
	if habit.BestStreak != 9 {
		t.Errorf("best = %d, want 9 untouched", habit.BestStreak)
	}

	// Skip overwrites a completion for the same date.
	today := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	if done, _ := store.IsCompletedOn(context.Background(), 1, today); done {
		t.Error("skip should overwrite the day's status")
	}
}

func TestGetHabitOwnership(t *testing.T) {
	svc, store := newHabitFixture()
	store.habits[1] = &domain.Habit{ID: 1, UserID: 10}

	if _, err := svc.GetHabit(context.Background(), 1, 10); err != nil {
		t.Errorf("owner lookup: %v", err)
	}
	if _, err := svc.GetHabit(context.Background(), 1, 11); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("foreign lookup err = %v, want ErrAccessDenied", err)
	}
	if _, err := svc.GetHabit(context.Background(), 99, 10); !errors.Is(err, ErrHabitNotFound) {
		t.Errorf("missing lookup err = %v, want ErrHabitNotFound", err)
	}
}

// Habit writes from outside the bot loop (the mini-app API) must honor
// the same per-user lock, or a completion can race a streak reset.
func TestCompleteHabitWaitsForUserLock(t *testing.T) {
	store := newFakeHabitStore()
	clk := &clock.Fixed{Instant: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	locks := NewUserLock()
	svc := NewHabitService(store, clk, locks)

	user := &domain.User{ID: 10, Timezone: "UTC"}
	habit := &domain.Habit{ID: 1, UserID: 10, IsActive: true, CurrentStreak: 4, BestStreak: 4}
	store.habits[1] = habit

	locks.Lock(user.ID)

	done := make(chan error, 1)
	go func() {
		done <- svc.CompleteHabit(context.Background(), habit, user)
	}()

	select {
	case <-done:
		t.Fatal("CompleteHabit should wait while the user lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	locks.Unlock(user.ID)
	if err := <-done; err != nil {
		t.Fatalf("CompleteHabit: %v", err)
	}
	if habit.CurrentStreak != 5 {
		t.Errorf("CurrentStreak = %d, want 5", habit.CurrentStreak)
	}
}
