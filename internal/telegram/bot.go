package telegram

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/config"
	"github.com/timoshinoleg-eng/habit/internal/dialog"
	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/service"
)

type Bot struct {
	api          *tgbotapi.BotAPI
	handlers     *Handlers
	adminHandler *AdminHandlers
	habitSvc     *service.HabitService
	reminderSvc  *service.ReminderService
	broadcastSvc *service.BroadcastService
	dispatcher   *dispatcher
	cfg          *config.Config
}

func NewBot(cfg *config.Config, repo repository.Repository) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	api.Debug = cfg.Environment == "development"
	log.Printf("Authorized on account %s", api.Self.UserName)

	clk := clock.System()

	// Services. The user lock is shared by every path that mutates habit
	// rows, including the mini-app API.
	locks := service.NewUserLock()
	habitSvc := service.NewHabitService(repo, clk, locks)
	streakSvc := service.NewStreakService(repo, clk, locks)
	exportSvc := service.NewExportService(repo, clk)
	aiSvc := service.NewAIService(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterBaseURL)
	reminderSvc := service.NewReminderService(repo, aiSvc, clk)
	broadcastSvc := service.NewBroadcastService(repo)

	// Dialogue
	sessions := dialog.NewStore()
	machine := dialog.NewMachine(sessions, habitSvc, clk)
	timeout := dialog.NewTimeoutMonitor(sessions, cfg.DialogTimeout, clk)

	// Handlers
	handlers := NewHandlers(api, repo, habitSvc, streakSvc, reminderSvc, exportSvc, aiSvc, machine, sessions, timeout, clk, cfg.StreakBreakDays)
	adminHandlers := NewAdminHandlers(api, repo, broadcastSvc)
	handlers.SetAdminHandlers(adminHandlers)

	reminderSvc.SetNotifyFunc(handlers.SendReminder)
	broadcastSvc.SetSendFunc(func(telegramID int64, text string) error {
		msg := tgbotapi.NewMessage(telegramID, text)
		msg.ParseMode = "Markdown"
		_, err := api.Send(msg)
		return err
	})

	if cfg.AdminTelegramID != 0 {
		if err := repo.AddAdmin(context.Background(), cfg.AdminTelegramID); err != nil {
			log.Printf("Error adding bootstrap admin %d: %v", cfg.AdminTelegramID, err)
		}
	}

	return &Bot{
		api:          api,
		handlers:     handlers,
		adminHandler: adminHandlers,
		habitSvc:     habitSvc,
		reminderSvc:  reminderSvc,
		broadcastSvc: broadcastSvc,
		dispatcher:   newDispatcher(handlers.HandleUpdate),
		cfg:          cfg,
	}, nil
}

func (b *Bot) Start(ctx context.Context) error {
	b.reminderSvc.Start()
	defer b.reminderSvc.Stop()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("Bot started")

	for {
		select {
		case <-ctx.Done():
			log.Println("Bot stopped")
			return nil
		case update := <-updates:
			b.dispatcher.Dispatch(updateKey(update), update)
		}
	}
}

func (b *Bot) GetHandlers() *Handlers {
	return b.handlers
}

// GetHabitService exposes the bot's habit service so the HTTP API shares
// the same per-user locking.
func (b *Bot) GetHabitService() *service.HabitService {
	return b.habitSvc
}

func (b *Bot) GetBroadcastService() *service.BroadcastService {
	return b.broadcastSvc
}

// updateKey picks the user the update belongs to; everything from the
// same user must be processed in arrival order.
func updateKey(update tgbotapi.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

// dispatcher serializes updates per user: one worker goroutine per user
// with pending work, draining a FIFO queue. Different users run in
// parallel; a worker whose queue is empty exits. Enqueue, dequeue and
// queue teardown all happen under the same mutex, so an update can never
// land in a queue nobody drains.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64]*userQueue
	handle func(tgbotapi.Update)
}

type userQueue struct {
	pending []tgbotapi.Update
}

func newDispatcher(handle func(tgbotapi.Update)) *dispatcher {
	return &dispatcher{
		queues: make(map[int64]*userQueue),
		handle: handle,
	}
}

func (d *dispatcher) Dispatch(key int64, update tgbotapi.Update) {
	d.mu.Lock()
	q, ok := d.queues[key]
	if !ok {
		q = &userQueue{}
		d.queues[key] = q
	}
	q.pending = append(q.pending, update)
	d.mu.Unlock()

	if !ok {
		go d.run(key, q)
	}
}

func (d *dispatcher) run(key int64, q *userQueue) {
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		update := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.handle(update)
	}
}
