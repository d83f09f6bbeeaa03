package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Telegram
	TelegramToken   string
	AdminTelegramID int64

	// Database
	DatabaseURL string

	// OpenRouter AI
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string

	// Dialogue
	DialogTimeout time.Duration

	// Streaks
	StreakBreakDays int

	// App
	Environment string
	Port        string
	APISecret   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		Port:              getEnv("PORT", "8080"),
		APISecret:         os.Getenv("API_SECRET"),
	}

	if adminID := os.Getenv("ADMIN_TELEGRAM_ID"); adminID != "" {
		cfg.AdminTelegramID, _ = strconv.ParseInt(adminID, 10, 64)
	}

	timeoutMin, err := strconv.Atoi(getEnv("DIALOG_TIMEOUT_MINUTES", "10"))
	if err != nil || timeoutMin <= 0 {
		return nil, fmt.Errorf("invalid DIALOG_TIMEOUT_MINUTES: %q", os.Getenv("DIALOG_TIMEOUT_MINUTES"))
	}
	cfg.DialogTimeout = time.Duration(timeoutMin) * time.Minute

	breakDays, err := strconv.Atoi(getEnv("STREAK_BREAK_DAYS", "2"))
	if err != nil || breakDays < 0 {
		return nil, fmt.Errorf("invalid STREAK_BREAK_DAYS: %q", os.Getenv("STREAK_BREAK_DAYS"))
	}
	cfg.StreakBreakDays = breakDays

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
