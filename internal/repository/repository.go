package repository

import (
	"context"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

// ReminderCandidate pairs an active habit with its owner for the scheduler;
// time matching happens in the service layer where the user's zone applies.
type ReminderCandidate struct {
	Habit *domain.Habit
	User  *domain.User
}

type UserExportData struct {
	User   *domain.User
	Habits []*domain.Habit
	Logs   []*domain.HabitLog
}

type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UpdateUserSettings(ctx context.Context, userID int64, timezone string, notificationsEnabled, aiEnabled bool, streakBreakDays int) error
	UpdateLastStreakCheck(ctx context.Context, userID int64, checkedAt time.Time) error
	GetTotalUsersCount(ctx context.Context) (int, error)
	GetUsersForBroadcast(ctx context.Context, lastUserID int64, limit int) ([]int64, int64, error)

	// Habits
	CreateHabit(ctx context.Context, habit *domain.Habit) error
	GetHabitByID(ctx context.Context, id int64) (*domain.Habit, error)
	GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error)
	UpdateHabit(ctx context.Context, habit *domain.Habit) error
	DeleteHabit(ctx context.Context, id int64) error
	CountUserHabits(ctx context.Context, userID int64) (int, error)
	ResetStreak(ctx context.Context, habitID int64) error

	// Habit Logs
	UpsertLog(ctx context.Context, log *domain.HabitLog) error
	GetHabitLogs(ctx context.Context, habitID int64, since time.Time) ([]*domain.HabitLog, error)
	GetUserLogsForDate(ctx context.Context, userID int64, date time.Time) ([]*domain.HabitLog, error)
	IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error)

	// Statistics
	GetHabitStats(ctx context.Context, habitID int64) (*domain.HabitStats, error)
	GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error)

	// Reminders
	GetReminderCandidates(ctx context.Context) ([]*ReminderCandidate, error)

	// Broadcasts
	CreateBroadcast(ctx context.Context, b *domain.Broadcast) error
	GetBroadcastByID(ctx context.Context, id int64) (*domain.Broadcast, error)
	GetRunningBroadcast(ctx context.Context) (*domain.Broadcast, error)
	GetAllBroadcasts(ctx context.Context) ([]*domain.Broadcast, error)
	StartBroadcast(ctx context.Context, id int64, totalUsers int) error
	UpdateBroadcastStatus(ctx context.Context, id int64, status domain.BroadcastStatus) error
	UpdateBroadcastProgress(ctx context.Context, id int64, sent, failed int, lastUserID int64) error
	CompleteBroadcast(ctx context.Context, id int64) error

	// Admins
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	AddAdmin(ctx context.Context, telegramID int64) error

	// Export
	GetAllUserData(ctx context.Context, userID int64) (*UserExportData, error)

	Close()
}
