package telegram

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/dialog"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/service"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

// fakeRepo implements only what the tests exercise; the embedded
// interface panics on anything unexpected.
type fakeRepo struct {
	repository.Repository
	user    *domain.User
	created *domain.User
}

func (f *fakeRepo) CreateUser(ctx context.Context, user *domain.User) error {
	f.created = user
	return nil
}

func (f *fakeRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return f.user, nil
}

type recordingStreakStore struct {
	habits     []*domain.Habit
	lastChecks int
}

func (s *recordingStreakStore) GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error) {
	return s.habits, nil
}

func (s *recordingStreakStore) GetHabitLogs(ctx context.Context, habitID int64, since time.Time) ([]*domain.HabitLog, error) {
	return nil, nil
}

func (s *recordingStreakStore) ResetStreak(ctx context.Context, habitID int64) error {
	return nil
}

func (s *recordingStreakStore) UpdateLastStreakCheck(ctx context.Context, userID int64, checkedAt time.Time) error {
	s.lastChecks++
	return nil
}

func newTestHandlers(repo *fakeRepo, streakStore *recordingStreakStore, breakDays int) (*Handlers, *fakeSender) {
	clk := &clock.Fixed{Instant: time.Date(2026, time.August, 28, 12, 0, 0, 0, time.UTC)}
	streakSvc := service.NewStreakService(streakStore, clk, service.NewUserLock())
	sessions := dialog.NewStore()
	timeout := dialog.NewTimeoutMonitor(sessions, 10*time.Minute, clk)
	sender := &fakeSender{}
	h := NewHandlers(sender, repo, nil, streakSvc, nil, nil, nil, nil, sessions, timeout, clk, breakDays)
	return h, sender
}

func TestEnsureUserAppliesConfiguredBreakDays(t *testing.T) {
	recent := time.Date(2026, time.August, 28, 11, 59, 0, 0, time.UTC)
	repo := &fakeRepo{user: &domain.User{
		ID: 7, TelegramID: 42, Timezone: "UTC",
		StreakBreakDays: 3, LastStreakCheck: &recent,
	}}
	h, _ := newTestHandlers(repo, &recordingStreakStore{}, 3)

	msg := &tgbotapi.Message{
		Text: "/help",
		From: &tgbotapi.User{ID: 42, FirstName: "Олег"},
		Chat: &tgbotapi.Chat{ID: 42},
	}
	h.handleMessage(context.Background(), msg)

	if repo.created == nil {
		t.Fatal("message should upsert the sender")
	}
	if repo.created.StreakBreakDays != 3 {
		t.Errorf("new user StreakBreakDays = %d, want configured 3", repo.created.StreakBreakDays)
	}
}

// Users who only ever press inline buttons still get the lazy streak
// evaluation.
func TestCallbackTriggersStreakCheck(t *testing.T) {
	repo := &fakeRepo{user: &domain.User{
		ID: 7, TelegramID: 42, Timezone: "UTC", StreakBreakDays: 2,
	}}
	store := &recordingStreakStore{}
	h, _ := newTestHandlers(repo, store, 2)

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 42},
		Data:    "back_to_settings",
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 42}},
	}
	h.handleCallback(context.Background(), cb)

	if store.lastChecks != 1 {
		t.Errorf("lastChecks = %d, want 1 after a callback", store.lastChecks)
	}
}
