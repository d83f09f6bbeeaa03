package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/habit")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DialogTimeout != 10*time.Minute {
		t.Errorf("DialogTimeout = %v, want 10m", cfg.DialogTimeout)
	}
	if cfg.StreakBreakDays != 2 {
		t.Errorf("StreakBreakDays = %d, want 2", cfg.StreakBreakDays)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.OpenRouterBaseURL == "" {
		t.Error("OpenRouter base URL should have a default")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/habit")
	if _, err := Load(); err == nil {
		t.Error("missing token should fail")
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Error("missing database url should fail")
	}
}

func TestLoadInvalidNumbers(t *testing.T) {
	setRequired(t)

	t.Setenv("DIALOG_TIMEOUT_MINUTES", "zero")
	if _, err := Load(); err == nil {
		t.Error("non-numeric timeout should fail")
	}
	t.Setenv("DIALOG_TIMEOUT_MINUTES", "0")
	if _, err := Load(); err == nil {
		t.Error("zero timeout should fail")
	}
	t.Setenv("DIALOG_TIMEOUT_MINUTES", "15")

	t.Setenv("STREAK_BREAK_DAYS", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative break days should fail")
	}
	t.Setenv("STREAK_BREAK_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DialogTimeout != 15*time.Minute {
		t.Errorf("DialogTimeout = %v, want 15m", cfg.DialogTimeout)
	}
	if cfg.StreakBreakDays != 3 {
		t.Errorf("StreakBreakDays = %d, want 3", cfg.StreakBreakDays)
	}
}
