package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

var ErrNotFound = errors.New("not found")

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{db: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.db.Close()
}

// ==================== USERS ====================

func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.Timezone == "" {
		user.Timezone = domain.DefaultTimezone
	}

	query := `
    INSERT INTO users (telegram_id, username, first_name, timezone, notifications_enabled, ai_enabled, streak_break_days, created_at, updated_at)
    VALUES ($1, $2, $3, $4, true, true, $5, $6, $6)
    ON CONFLICT (telegram_id) DO UPDATE SET
      username = EXCLUDED.username,
      first_name = EXCLUDED.first_name,
      updated_at = EXCLUDED.updated_at
    RETURNING id, timezone, notifications_enabled, ai_enabled, streak_break_days`

	return r.db.QueryRow(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.Timezone,
		user.StreakBreakDays, time.Now(),
	).Scan(&user.ID, &user.Timezone, &user.NotificationsEnabled, &user.AIEnabled, &user.StreakBreakDays)
}

func (r *PostgresRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `
    SELECT id, telegram_id, username, first_name, timezone, notifications_enabled,
           ai_enabled, streak_break_days, last_streak_check, created_at, updated_at
    FROM users WHERE telegram_id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, telegramID))
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
    SELECT id, telegram_id, username, first_name, timezone, notifications_enabled,
           ai_enabled, streak_break_days, last_streak_check, created_at, updated_at
    FROM users WHERE id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.TelegramID, &user.Username, &user.FirstName,
		&user.Timezone, &user.NotificationsEnabled, &user.AIEnabled,
		&user.StreakBreakDays, &user.LastStreakCheck, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresRepository) UpdateUserSettings(ctx context.Context, userID int64, timezone string, notificationsEnabled, aiEnabled bool, streakBreakDays int) error {
	query := `
    UPDATE users SET timezone=$2, notifications_enabled=$3, ai_enabled=$4, streak_break_days=$5, updated_at=$6
    WHERE id=$1`
	_, err := r.db.Exec(ctx, query, userID, timezone, notificationsEnabled, aiEnabled, streakBreakDays, time.Now())
	return err
}

func (r *PostgresRepository) UpdateLastStreakCheck(ctx context.Context, userID int64, checkedAt time.Time) error {
	query := `UPDATE users SET last_streak_check=$2, updated_at=$2 WHERE id=$1`
	_, err := r.db.Exec(ctx, query, userID, checkedAt)
	return err
}

func (r *PostgresRepository) GetTotalUsersCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *PostgresRepository) GetUsersForBroadcast(ctx context.Context, lastUserID int64, limit int) ([]int64, int64, error) {
	query := `
    SELECT id, telegram_id FROM users
    WHERE id > $1
    ORDER BY id ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, lastUserID, limit)
	if err != nil {
		return nil, lastUserID, err
	}
	defer rows.Close()

	var telegramIDs []int64
	var maxID int64 = lastUserID
	for rows.Next() {
		var id, telegramID int64
		if err := rows.Scan(&id, &telegramID); err != nil {
			return nil, lastUserID, err
		}
		telegramIDs = append(telegramIDs, telegramID)
		if id > maxID {
			maxID = id
		}
	}
	return telegramIDs, maxID, nil
}

// ==================== HABITS ====================

func (r *PostgresRepository) CreateHabit(ctx context.Context, habit *domain.Habit) error {
	if habit.Emoji == "" {
		habit.Emoji = domain.DefaultEmoji
	}

	query := `
	  INSERT INTO habits (user_id, name, description, emoji, frequency, custom_days, reminder_time, is_active, is_paused, created_at, updated_at)
	  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, $9, $9) RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		habit.UserID, habit.Name, habit.Description, habit.Emoji, habit.Frequency,
		habit.CustomDays, habit.ReminderTime, habit.IsActive, time.Now(),
	).Scan(&habit.ID, &habit.CreatedAt)
}

const habitColumns = `id, user_id, name, description, emoji, frequency, custom_days, reminder_time,
	   current_streak, best_streak, total_done, is_active, is_paused, created_at, updated_at`

func (r *PostgresRepository) scanHabit(row pgx.Row) (*domain.Habit, error) {
	habit := &domain.Habit{}
	err := row.Scan(
		&habit.ID, &habit.UserID, &habit.Name, &habit.Description, &habit.Emoji,
		&habit.Frequency, &habit.CustomDays, &habit.ReminderTime,
		&habit.CurrentStreak, &habit.BestStreak, &habit.TotalDone,
		&habit.IsActive, &habit.IsPaused, &habit.CreatedAt, &habit.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func (r *PostgresRepository) GetHabitByID(ctx context.Context, id int64) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`
	return r.scanHabit(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) GetActiveHabits(ctx context.Context, userID int64) ([]*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits
	  WHERE user_id = $1 AND is_active = true ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []*domain.Habit
	for rows.Next() {
		habit, err := r.scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

func (r *PostgresRepository) UpdateHabit(ctx context.Context, habit *domain.Habit) error {
	query := `
	  UPDATE habits SET name=$2, description=$3, emoji=$4, frequency=$5, custom_days=$6,
	    reminder_time=$7, current_streak=$8, best_streak=$9, total_done=$10,
	    is_active=$11, is_paused=$12, updated_at=$13
	  WHERE id=$1`
	_, err := r.db.Exec(ctx, query,
		habit.ID, habit.Name, habit.Description, habit.Emoji, habit.Frequency,
		habit.CustomDays, habit.ReminderTime, habit.CurrentStreak, habit.BestStreak,
		habit.TotalDone, habit.IsActive, habit.IsPaused, time.Now(),
	)
	return err
}

func (r *PostgresRepository) DeleteHabit(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) CountUserHabits(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM habits WHERE user_id = $1 AND is_active = true`, userID).Scan(&count)
	return count, err
}

func (r *PostgresRepository) ResetStreak(ctx context.Context, habitID int64) error {
	// best_streak is deliberately left alone.
	query := `UPDATE habits SET current_streak = 0, updated_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, habitID, time.Now())
	return err
}

// ==================== HABIT LOGS ====================

func (r *PostgresRepository) UpsertLog(ctx context.Context, log *domain.HabitLog) error {
	query := `
	  INSERT INTO habit_logs (habit_id, user_id, date, status, note, created_at)
	  VALUES ($1, $2, $3, $4, $5, $6)
	  ON CONFLICT (habit_id, date) DO UPDATE SET
	    status = EXCLUDED.status,
	    note = EXCLUDED.note,
	    created_at = EXCLUDED.created_at
	  RETURNING id`
	return r.db.QueryRow(ctx, query,
		log.HabitID, log.UserID, log.Date, log.Status, log.Note, time.Now(),
	).Scan(&log.ID)
}

func (r *PostgresRepository) GetHabitLogs(ctx context.Context, habitID int64, since time.Time) ([]*domain.HabitLog, error) {
	query := `
	  SELECT id, habit_id, user_id, date, status, note, created_at
	  FROM habit_logs WHERE habit_id = $1 AND date >= $2
	  ORDER BY date DESC`

	rows, err := r.db.Query(ctx, query, habitID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogs(rows)
}

func (r *PostgresRepository) GetUserLogsForDate(ctx context.Context, userID int64, date time.Time) ([]*domain.HabitLog, error) {
	query := `
	  SELECT id, habit_id, user_id, date, status, note, created_at
	  FROM habit_logs WHERE user_id = $1 AND date = $2`

	rows, err := r.db.Query(ctx, query, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows pgx.Rows) ([]*domain.HabitLog, error) {
	var logs []*domain.HabitLog
	for rows.Next() {
		log := &domain.HabitLog{}
		if err := rows.Scan(&log.ID, &log.HabitID, &log.UserID, &log.Date, &log.Status, &log.Note, &log.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (r *PostgresRepository) IsCompletedOn(ctx context.Context, habitID int64, date time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM habit_logs WHERE habit_id = $1 AND date = $2 AND status = 'completed')`
	err := r.db.QueryRow(ctx, query, habitID, date).Scan(&exists)
	return exists, err
}

// ==================== STATISTICS ====================

func (r *PostgresRepository) GetHabitStats(ctx context.Context, habitID int64) (*domain.HabitStats, error) {
	query := `
	  SELECT h.id, h.name, h.current_streak, h.best_streak,
	         COUNT(l.id) AS total_days,
	         COUNT(l.id) FILTER (WHERE l.status = 'completed') AS completed_days
	  FROM habits h
	  LEFT JOIN habit_logs l ON l.habit_id = h.id
	  WHERE h.id = $1
	  GROUP BY h.id`

	stats := &domain.HabitStats{}
	err := r.db.QueryRow(ctx, query, habitID).Scan(
		&stats.HabitID, &stats.HabitName, &stats.CurrentStreak, &stats.BestStreak,
		&stats.TotalDays, &stats.CompletedDays,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if stats.TotalDays > 0 {
		stats.CompletionRate = float64(stats.CompletedDays) / float64(stats.TotalDays) * 100
	}
	return stats, nil
}

func (r *PostgresRepository) GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	query := `
	  SELECT COUNT(*),
	         COUNT(*) FILTER (WHERE is_active),
	         COALESCE(SUM(total_done), 0),
	         COALESCE(MAX(best_streak), 0)
	  FROM habits WHERE user_id = $1`

	stats := &domain.UserStats{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.TotalHabits, &stats.ActiveHabits, &stats.TotalCompletions, &stats.BestStreak,
	)
	return stats, err
}

// ==================== REMINDERS ====================

func (r *PostgresRepository) GetReminderCandidates(ctx context.Context) ([]*ReminderCandidate, error) {
	query := `
	  SELECT h.id, h.user_id, h.name, h.description, h.emoji, h.frequency, h.custom_days,
	         h.reminder_time, h.current_streak, h.best_streak, h.total_done,
	         h.is_active, h.is_paused, h.created_at, h.updated_at,
	         u.id, u.telegram_id, u.username, u.first_name, u.timezone,
	         u.notifications_enabled, u.ai_enabled, u.streak_break_days,
	         u.last_streak_check, u.created_at, u.updated_at
	  FROM habits h
	  JOIN users u ON u.id = h.user_id
	  WHERE h.is_active = true AND h.is_paused = false
	    AND h.reminder_time IS NOT NULL
	    AND u.notifications_enabled = true`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*ReminderCandidate
	for rows.Next() {
		habit := &domain.Habit{}
		user := &domain.User{}
		err := rows.Scan(
			&habit.ID, &habit.UserID, &habit.Name, &habit.Description, &habit.Emoji,
			&habit.Frequency, &habit.CustomDays, &habit.ReminderTime,
			&habit.CurrentStreak, &habit.BestStreak, &habit.TotalDone,
			&habit.IsActive, &habit.IsPaused, &habit.CreatedAt, &habit.UpdatedAt,
			&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.Timezone,
			&user.NotificationsEnabled, &user.AIEnabled, &user.StreakBreakDays,
			&user.LastStreakCheck, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, &ReminderCandidate{Habit: habit, User: user})
	}
	return candidates, rows.Err()
}

// ==================== BROADCASTS ====================

func (r *PostgresRepository) CreateBroadcast(ctx context.Context, b *domain.Broadcast) error {
	query := `
	  INSERT INTO broadcasts (name, text, status, created_at)
	  VALUES ($1, $2, $3, $4) RETURNING id`
	return r.db.QueryRow(ctx, query, b.Name, b.Text, domain.BroadcastDraft, time.Now()).Scan(&b.ID)
}

const broadcastColumns = `id, name, text, status, total_users, sent_count, failed_count, last_user_id, created_at, started_at, completed_at`

func scanBroadcast(row pgx.Row) (*domain.Broadcast, error) {
	b := &domain.Broadcast{}
	err := row.Scan(
		&b.ID, &b.Name, &b.Text, &b.Status, &b.TotalUsers, &b.SentCount,
		&b.FailedCount, &b.LastUserID, &b.CreatedAt, &b.StartedAt, &b.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PostgresRepository) GetBroadcastByID(ctx context.Context, id int64) (*domain.Broadcast, error) {
	return scanBroadcast(r.db.QueryRow(ctx, `SELECT `+broadcastColumns+` FROM broadcasts WHERE id = $1`, id))
}

func (r *PostgresRepository) GetRunningBroadcast(ctx context.Context) (*domain.Broadcast, error) {
	return scanBroadcast(r.db.QueryRow(ctx, `SELECT `+broadcastColumns+` FROM broadcasts WHERE status = 'running' LIMIT 1`))
}

func (r *PostgresRepository) GetAllBroadcasts(ctx context.Context) ([]*domain.Broadcast, error) {
	rows, err := r.db.Query(ctx, `SELECT `+broadcastColumns+` FROM broadcasts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var broadcasts []*domain.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, b)
	}
	return broadcasts, rows.Err()
}

func (r *PostgresRepository) StartBroadcast(ctx context.Context, id int64, totalUsers int) error {
	query := `UPDATE broadcasts SET status = 'running', total_users = $2, started_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, totalUsers, time.Now())
	return err
}

func (r *PostgresRepository) UpdateBroadcastStatus(ctx context.Context, id int64, status domain.BroadcastStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE broadcasts SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *PostgresRepository) UpdateBroadcastProgress(ctx context.Context, id int64, sent, failed int, lastUserID int64) error {
	query := `UPDATE broadcasts SET sent_count = $2, failed_count = $3, last_user_id = $4 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, sent, failed, lastUserID)
	return err
}

func (r *PostgresRepository) CompleteBroadcast(ctx context.Context, id int64) error {
	query := `UPDATE broadcasts SET status = 'completed', completed_at = $2 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id, time.Now())
	return err
}

// ==================== ADMINS ====================

func (r *PostgresRepository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM admins WHERE telegram_id = $1)`, telegramID).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) AddAdmin(ctx context.Context, telegramID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO admins (telegram_id) VALUES ($1) ON CONFLICT DO NOTHING`, telegramID)
	return err
}

// ==================== EXPORT ====================

func (r *PostgresRepository) GetAllUserData(ctx context.Context, userID int64) (*UserExportData, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	habits, err := r.GetActiveHabits(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
	  SELECT id, habit_id, user_id, date, status, note, created_at
	  FROM habit_logs WHERE user_id = $1 ORDER BY date DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs, err := scanLogs(rows)
	if err != nil {
		return nil, err
	}

	return &UserExportData{User: user, Habits: habits, Logs: logs}, nil
}
