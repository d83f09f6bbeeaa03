package domain

import (
	"time"
)

// ==================== USER ====================

type User struct {
	ID                   int64
	TelegramID           int64
	Username             string
	FirstName            string
	Timezone             string
	NotificationsEnabled bool
	AIEnabled            bool
	// Days of silence before a streak is forcibly reset; 0 disables auto-break.
	StreakBreakDays int
	LastStreakCheck *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ==================== HABIT ====================

type Habit struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	Emoji       string
	Frequency   Frequency
	// Bitmask of weekdays (bit 0 = Monday), only used with FrequencyCustom.
	CustomDays    *int
	ReminderTime  *string
	CurrentStreak int
	BestStreak    int
	TotalDone     int
	IsActive      bool
	IsPaused      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekdays Frequency = "weekdays"
	FrequencyWeekends Frequency = "weekends"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyCustom   Frequency = "custom"
)

func ParseFrequency(s string) (Frequency, bool) {
	switch Frequency(s) {
	case FrequencyDaily, FrequencyWeekdays, FrequencyWeekends, FrequencyWeekly, FrequencyCustom:
		return Frequency(s), true
	}
	return "", false
}

// mondayWeekday maps time.Weekday to a Monday-based index (0=Mon .. 6=Sun).
func mondayWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ShouldRemindOn reports whether the habit is due on the given local date.
// Weekly habits remind on the weekday the habit was created, resolved in
// the date's own zone so a late-evening creation keeps its local weekday.
func (h *Habit) ShouldRemindOn(date time.Time) bool {
	wd := mondayWeekday(date.Weekday())

	switch h.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekdays:
		return wd < 5
	case FrequencyWeekends:
		return wd >= 5
	case FrequencyWeekly:
		return date.Weekday() == h.CreatedAt.In(date.Location()).Weekday()
	case FrequencyCustom:
		if h.CustomDays == nil {
			return true
		}
		return *h.CustomDays&(1<<wd) != 0
	}
	return true
}

// ==================== HABIT LOG ====================

type LogStatus string

const (
	StatusCompleted LogStatus = "completed"
	StatusSkipped   LogStatus = "skipped"
)

// HabitLog holds one row per (habit, calendar date); re-logging a date
// overwrites the previous status.
type HabitLog struct {
	ID        int64
	HabitID   int64
	UserID    int64
	Date      time.Time
	Status    LogStatus
	Note      string
	CreatedAt time.Time
}

// ==================== STATISTICS ====================

type HabitStats struct {
	HabitID        int64
	HabitName      string
	TotalDays      int
	CompletedDays  int
	CurrentStreak  int
	BestStreak     int
	CompletionRate float64
}

type UserStats struct {
	TotalHabits      int
	ActiveHabits     int
	TotalCompletions int
	BestStreak       int
}

// ==================== REMINDER ====================

// ReminderJob is the ephemeral intent to notify; never persisted and never
// issued twice for the same (HabitID, FireDate).
type ReminderJob struct {
	ID       string
	HabitID  int64
	UserID   int64
	FireDate time.Time
}

// ==================== BROADCASTS ====================

type Broadcast struct {
	ID          int64
	Name        string
	Text        string
	Status      BroadcastStatus
	TotalUsers  int
	SentCount   int
	FailedCount int
	LastUserID  int64
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type BroadcastStatus string

const (
	BroadcastDraft     BroadcastStatus = "draft"
	BroadcastRunning   BroadcastStatus = "running"
	BroadcastPaused    BroadcastStatus = "paused"
	BroadcastCompleted BroadcastStatus = "completed"
)

// ==================== CONSTANTS ====================

const (
	DefaultEmoji           = "✅"
	DefaultTimezone        = "UTC"
	DefaultStreakBreakDays = 2

	NameMinLen        = 2
	NameMaxLen        = 100
	DescriptionMaxLen = 500

	MaxHabitsPerUser = 20
)

// EmojiPalette is the fixed set offered during habit creation.
var EmojiPalette = []string{
	"✅", "💪", "🏃", "📚",
	"💧", "🧘", "🥗", "💊",
	"🎯", "⭐", "🔥", "❤️",
}

func IsPaletteEmoji(s string) bool {
	for _, e := range EmojiPalette {
		if e == s {
			return true
		}
	}
	return false
}
