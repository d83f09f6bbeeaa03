package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
)

type ReminderStore interface {
	GetReminderCandidates(ctx context.Context) ([]*repository.ReminderCandidate, error)
	IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error)
}

// ReminderTexter produces the reminder message; an error means the caller
// must use the deterministic template instead.
type ReminderTexter interface {
	ReminderText(ctx context.Context, user *domain.User, habit *domain.Habit) (string, error)
}

type firedKey struct {
	habitID int64
	date    string
}

// ReminderService drives the per-minute tick. A reminder fires only on the
// tick whose user-local HH:MM equals the habit's reminder time; missed
// ticks are not caught up.
type ReminderService struct {
	repo   ReminderStore
	ai     ReminderTexter
	clk    clock.Clock
	cron   *cron.Cron
	notify func(telegramID int64, habitID int64, text string) error

	// fired guards at-most-once delivery per (habit, local date).
	mu    sync.Mutex
	fired map[firedKey]struct{}
}

func NewReminderService(repo ReminderStore, ai ReminderTexter, clk clock.Clock) *ReminderService {
	return &ReminderService{
		repo:  repo,
		ai:    ai,
		clk:   clk,
		cron:  cron.New(),
		fired: make(map[firedKey]struct{}),
	}
}

func (s *ReminderService) SetNotifyFunc(fn func(telegramID int64, habitID int64, text string) error) {
	s.notify = fn
}

func (s *ReminderService) Start() {
	s.cron.AddFunc("* * * * *", func() {
		s.Tick(context.Background(), s.clk.Now())
	})
	// Nightly sweep keeps the fired set from growing past a day's worth.
	s.cron.AddFunc("0 3 * * *", s.sweepFired)
	s.cron.Start()
	log.Println("Reminder service started")
}

func (s *ReminderService) Stop() {
	s.cron.Stop()
}

// Tick evaluates every candidate habit against the given UTC instant.
func (s *ReminderService) Tick(ctx context.Context, now time.Time) {
	candidates, err := s.repo.GetReminderCandidates(ctx)
	if err != nil {
		log.Printf("Error getting reminder candidates: %v", err)
		return
	}

	for _, c := range candidates {
		job, ok := s.evaluate(ctx, c, now)
		if !ok {
			continue
		}

		text := s.messageFor(ctx, c.User, c.Habit)
		if s.notify != nil {
			if err := s.notify(c.User.TelegramID, c.Habit.ID, text); err != nil {
				log.Printf("Error sending reminder job %s: %v", job.ID, err)
				continue
			}
		}
		s.markFired(c.Habit.ID, job.FireDate)
	}
}

// evaluate decides whether a candidate is due right now and builds its job.
func (s *ReminderService) evaluate(ctx context.Context, c *repository.ReminderCandidate, now time.Time) (*domain.ReminderJob, bool) {
	habit, user := c.Habit, c.User
	if habit.ReminderTime == nil {
		return nil, false
	}

	loc := clock.UserLocation(user.Timezone)
	local := now.In(loc)

	// Exact minute match only; no tolerance window.
	if local.Format("15:04") != *habit.ReminderTime {
		return nil, false
	}

	localDate := clock.DateOf(now, loc)
	if !habit.ShouldRemindOn(local) {
		return nil, false
	}

	if s.alreadyFired(habit.ID, localDate) {
		return nil, false
	}

	completed, err := s.repo.IsCompletedOn(ctx, habit.ID, localDate)
	if err != nil {
		log.Printf("Error checking completion for habit %d: %v", habit.ID, err)
		return nil, false
	}
	if completed {
		return nil, false
	}

	return &domain.ReminderJob{
		ID:       uuid.NewString(),
		HabitID:  habit.ID,
		UserID:   user.ID,
		FireDate: localDate,
	}, true
}

func (s *ReminderService) messageFor(ctx context.Context, user *domain.User, habit *domain.Habit) string {
	if user.AIEnabled && s.ai != nil {
		text, err := s.ai.ReminderText(ctx, user, habit)
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			log.Printf("AI reminder generation failed for habit %d: %v", habit.ID, err)
		}
	}
	return fmt.Sprintf("%s *Напоминание!*\n\nПора выполнить: *%s*\n🔥 Текущая серия: %d дн.",
		habit.Emoji, habit.Name, habit.CurrentStreak)
}

// MarkCompleted suppresses the rest of today's evaluations for a habit
// once a completion is written.
func (s *ReminderService) MarkCompleted(habitID int64, localDate time.Time) {
	s.markFired(habitID, localDate)
}

func (s *ReminderService) alreadyFired(habitID int64, date time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.fired[firedKey{habitID, date.Format("2006-01-02")}]
	return ok
}

func (s *ReminderService) markFired(habitID int64, date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[firedKey{habitID, date.Format("2006-01-02")}] = struct{}{}
}

func (s *ReminderService) sweepFired() {
	cutoff := s.clk.Now().AddDate(0, 0, -2).Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.fired {
		if k.date < cutoff {
			delete(s.fired, k)
		}
	}
}
