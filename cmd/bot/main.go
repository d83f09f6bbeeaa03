package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/timoshinoleg-eng/habit/internal/config"
	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/server"
	"github.com/timoshinoleg-eng/habit/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()
	log.Println("Connected to database")

	bot, err := telegram.NewBot(cfg, repo)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// The API shares the bot's habit service so habit writes from both
	// surfaces go through the same per-user lock.
	srv := server.NewServer(repo, bot.GetHabitService(), cfg.APISecret, cfg.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	if err := bot.Start(ctx); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
}
