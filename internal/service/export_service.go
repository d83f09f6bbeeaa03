package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/repository"
)

type ExportStore interface {
	GetAllUserData(ctx context.Context, userID int64) (*repository.UserExportData, error)
}

type ExportService struct {
	repo ExportStore
	clk  clock.Clock
}

func NewExportService(repo ExportStore, clk clock.Clock) *ExportService {
	return &ExportService{repo: repo, clk: clk}
}

// ExportToCSV renders the user's full history as a single CSV document.
func (s *ExportService) ExportToCSV(ctx context.Context, userID int64) ([]byte, error) {
	data, err := s.repo.GetAllUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"HABIT TRACKER EXPORT"})
	writer.Write([]string{fmt.Sprintf("User: %s", data.User.FirstName)})
	writer.Write([]string{fmt.Sprintf("Exported: %s", s.clk.Now().Format("2006-01-02 15:04:05"))})
	writer.Write([]string{""})

	writer.Write([]string{"=== HABITS ==="})
	writer.Write([]string{"ID", "Name", "Frequency", "Reminder", "Current Streak", "Best Streak", "Total Done", "Created"})
	for _, h := range data.Habits {
		reminder := "-"
		if h.ReminderTime != nil {
			reminder = *h.ReminderTime
		}
		writer.Write([]string{
			fmt.Sprintf("%d", h.ID),
			h.Name,
			string(h.Frequency),
			reminder,
			fmt.Sprintf("%d", h.CurrentStreak),
			fmt.Sprintf("%d", h.BestStreak),
			fmt.Sprintf("%d", h.TotalDone),
			h.CreatedAt.Format("2006-01-02"),
		})
	}
	writer.Write([]string{""})

	writer.Write([]string{"=== HABIT LOGS ==="})
	writer.Write([]string{"Date", "Habit ID", "Status"})
	for _, l := range data.Logs {
		writer.Write([]string{
			l.Date.Format("2006-01-02"),
			fmt.Sprintf("%d", l.HabitID),
			string(l.Status),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
