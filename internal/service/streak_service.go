package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/domain"
)

// checkInterval is how stale a user's last evaluation must be before
// their streaks are re-checked on interaction.
const checkInterval = time.Hour

type StreakStore interface {
	GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error)
	GetHabitLogs(ctx context.Context, habitID int64, since time.Time) ([]*domain.HabitLog, error)
	ResetStreak(ctx context.Context, habitID int64) error
	UpdateLastStreakCheck(ctx context.Context, userID int64, checkedAt time.Time) error
}

// BrokenStreak reports a reset for user-facing notification.
type BrokenStreak struct {
	Habit       *domain.Habit
	PriorStreak int
}

// StreakService decides when silence has broken a streak. It runs lazily
// on user interaction rather than on a per-habit timer, so work stays
// proportional to active users.
type StreakService struct {
	repo  StreakStore
	clk   clock.Clock
	locks *UserLock
}

func NewStreakService(repo StreakStore, clk clock.Clock, locks *UserLock) *StreakService {
	return &StreakService{repo: repo, clk: clk, locks: locks}
}

// CheckUser evaluates all of the user's active habits if the previous
// evaluation is more than an hour old. Returns the streaks that were reset.
func (s *StreakService) CheckUser(ctx context.Context, user *domain.User) ([]BrokenStreak, error) {
	now := s.clk.Now()

	if user.LastStreakCheck != nil && now.Sub(*user.LastStreakCheck) < checkInterval {
		return nil, nil
	}

	// 0 means the user disabled auto-breaking entirely.
	if user.StreakBreakDays == 0 {
		return nil, nil
	}

	// A reset must not interleave with a completion coming in over the
	// HTTP API for the same user.
	s.locks.Lock(user.ID)
	defer s.locks.Unlock(user.ID)

	habits, err := s.repo.GetActiveHabits(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get habits: %w", err)
	}

	today := clock.DateOf(now, clock.UserLocation(user.Timezone))

	var broken []BrokenStreak
	for _, habit := range habits {
		wasBroken, err := s.evaluateHabit(ctx, habit, user.StreakBreakDays, today)
		if err != nil {
			log.Printf("Error evaluating streak for habit %d: %v", habit.ID, err)
			continue
		}
		if wasBroken {
			broken = append(broken, BrokenStreak{Habit: habit, PriorStreak: habit.CurrentStreak})
			log.Printf("Streak broken for user %d, habit %d: was %d, reset to 0",
				user.ID, habit.ID, habit.CurrentStreak)
		}
	}

	if err := s.repo.UpdateLastStreakCheck(ctx, user.ID, now); err != nil {
		log.Printf("Error updating last streak check for user %d: %v", user.ID, err)
	}

	return broken, nil
}

// evaluateHabit applies the break rule to one habit. best_streak is never
// touched by a reset.
func (s *StreakService) evaluateHabit(ctx context.Context, habit *domain.Habit, breakDays int, today time.Time) (bool, error) {
	if habit.CurrentStreak == 0 {
		return false, nil
	}

	since := today.AddDate(0, 0, -(breakDays + 1))
	logs, err := s.repo.GetHabitLogs(ctx, habit.ID, since)
	if err != nil {
		return false, fmt.Errorf("get logs: %w", err)
	}

	// Logs come newest-first; find the latest completion in the window.
	var lastCompleted *time.Time
	for _, l := range logs {
		if l.Status == domain.StatusCompleted {
			d := l.Date
			lastCompleted = &d
			break
		}
	}

	if lastCompleted == nil {
		return true, s.repo.ResetStreak(ctx, habit.ID)
	}

	if clock.DaysBetween(*lastCompleted, today) >= breakDays {
		return true, s.repo.ResetStreak(ctx, habit.ID)
	}

	return false, nil
}
