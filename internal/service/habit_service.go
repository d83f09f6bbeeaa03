package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/dialog"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
)

var (
	ErrHabitNotFound = errors.New("привычка не найдена")
	ErrAccessDenied  = errors.New("доступ запрещён")
)

// HabitStore is the slice of the repository the habit service needs.
type HabitStore interface {
	CreateHabit(ctx context.Context, habit *domain.Habit) error
	GetHabitByID(ctx context.Context, id int64) (*domain.Habit, error)
	GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error)
	UpdateHabit(ctx context.Context, habit *domain.Habit) error
	DeleteHabit(ctx context.Context, id int64) error
	UpsertLog(ctx context.Context, log *domain.HabitLog) error
	IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error)
	GetUserLogsForDate(ctx context.Context, userID int64, date time.Time) ([]*domain.HabitLog, error)
	GetHabitStats(ctx context.Context, habitID int64) (*domain.HabitStats, error)
	GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error)
}

type HabitService struct {
	repo  HabitStore
	clk   clock.Clock
	locks *UserLock
}

func NewHabitService(repo HabitStore, clk clock.Clock, locks *UserLock) *HabitService {
	return &HabitService{repo: repo, clk: clk, locks: locks}
}

// CreateFromDraft persists a finished dialogue draft as a new habit.
// Implements dialog.HabitCreator.
func (s *HabitService) CreateFromDraft(ctx context.Context, userID int64, draft dialog.Draft) (*domain.Habit, error) {
	habit := &domain.Habit{
		UserID:       userID,
		Name:         draft.Name,
		Emoji:        draft.Emoji,
		Frequency:    draft.Frequency,
		CustomDays:   draft.CustomDays,
		ReminderTime: draft.ReminderTime,
		IsActive:     true,
	}
	if draft.Description != nil {
		habit.Description = *draft.Description
	}
	if habit.Emoji == "" {
		habit.Emoji = domain.DefaultEmoji
	}

	if err := s.repo.CreateHabit(ctx, habit); err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return habit, nil
}

func (s *HabitService) GetUserHabits(ctx context.Context, userID int64) ([]*domain.Habit, error) {
	return s.repo.GetActiveHabits(ctx, userID)
}

func (s *HabitService) GetHabit(ctx context.Context, habitID, userID int64) (*domain.Habit, error) {
	habit, err := s.repo.GetHabitByID(ctx, habitID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, ErrAccessDenied
	}
	return habit, nil
}

// CompleteHabit logs today's completion in the user's local calendar and
// bumps the streak. Re-completing the same date is a no-op for counters;
// the log row is simply overwritten.
func (s *HabitService) CompleteHabit(ctx context.Context, habit *domain.Habit, user *domain.User) error {
	s.locks.Lock(user.ID)
	defer s.locks.Unlock(user.ID)

	today := clock.DateOf(s.clk.Now(), clock.UserLocation(user.Timezone))

	already, err := s.repo.IsCompletedOn(ctx, habit.ID, today)
	if err != nil {
		return fmt.Errorf("check log: %w", err)
	}

	log := &domain.HabitLog{
		HabitID: habit.ID,
		UserID:  user.ID,
		Date:    today,
		Status:  domain.StatusCompleted,
	}
	if err := s.repo.UpsertLog(ctx, log); err != nil {
		return fmt.Errorf("log habit: %w", err)
	}

	if already {
		return nil
	}

	habit.TotalDone++
	habit.CurrentStreak++
	if habit.CurrentStreak > habit.BestStreak {
		habit.BestStreak = habit.CurrentStreak
	}
	return s.repo.UpdateHabit(ctx, habit)
}

// SkipHabit records an explicit skip, which resets the current streak.
func (s *HabitService) SkipHabit(ctx context.Context, habit *domain.Habit, user *domain.User) error {
	s.locks.Lock(user.ID)
	defer s.locks.Unlock(user.ID)

	today := clock.DateOf(s.clk.Now(), clock.UserLocation(user.Timezone))

	log := &domain.HabitLog{
		HabitID: habit.ID,
		UserID:  user.ID,
		Date:    today,
		Status:  domain.StatusSkipped,
	}
	if err := s.repo.UpsertLog(ctx, log); err != nil {
		return fmt.Errorf("log habit: %w", err)
	}

	if habit.CurrentStreak != 0 {
		habit.CurrentStreak = 0
		return s.repo.UpdateHabit(ctx, habit)
	}
	return nil
}

// GetTodayStatus returns habitID -> completed for the user's local today.
func (s *HabitService) GetTodayStatus(ctx context.Context, user *domain.User) (map[int64]bool, error) {
	today := clock.DateOf(s.clk.Now(), clock.UserLocation(user.Timezone))

	logs, err := s.repo.GetUserLogsForDate(ctx, user.ID, today)
	if err != nil {
		return nil, err
	}

	status := make(map[int64]bool)
	for _, log := range logs {
		status[log.HabitID] = log.Status == domain.StatusCompleted
	}
	return status, nil
}

func (s *HabitService) GetHabitStats(ctx context.Context, habitID int64) (*domain.HabitStats, error) {
	return s.repo.GetHabitStats(ctx, habitID)
}

func (s *HabitService) GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	return s.repo.GetUserStats(ctx, userID)
}

func (s *HabitService) DeleteHabit(ctx context.Context, habitID, userID int64) error {
	if _, err := s.GetHabit(ctx, habitID, userID); err != nil {
		return err
	}
	return s.repo.DeleteHabit(ctx, habitID)
}

