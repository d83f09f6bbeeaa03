package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/service"
)

type AdminHandlers struct {
	bot          *tgbotapi.BotAPI
	repo         repository.Repository
	broadcastSvc *service.BroadcastService
}

func NewAdminHandlers(bot *tgbotapi.BotAPI, repo repository.Repository, broadcastSvc *service.BroadcastService) *AdminHandlers {
	return &AdminHandlers{
		bot:          bot,
		repo:         repo,
		broadcastSvc: broadcastSvc,
	}
}

// HandleAdminCommand intercepts admin-only commands. Returns false for
// non-admins and for anything that is not an admin command, so the
// regular handlers take over.
func (h *AdminHandlers) HandleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	isAdmin, _ := h.repo.IsAdmin(ctx, msg.From.ID)
	if !isAdmin {
		return false
	}

	switch {
	case msg.Text == "/admin":
		h.showAdminMenu(msg.Chat.ID)
		return true
	case msg.Text == "/admin_stats":
		h.showStats(ctx, msg.Chat.ID)
		return true
	case strings.HasPrefix(msg.Text, "/broadcast "):
		h.newBroadcast(ctx, msg)
		return true
	case msg.Text == "/broadcasts":
		h.showBroadcasts(ctx, msg.Chat.ID)
		return true
	case strings.HasPrefix(msg.Text, "/startbroadcast "):
		h.startBroadcast(ctx, msg)
		return true
	case msg.Text == "/stopbroadcast":
		h.stopBroadcast(msg.Chat.ID)
		return true
	case msg.Text == "/resumebroadcast":
		h.resumeBroadcast(ctx, msg.Chat.ID)
		return true
	}

	return false
}

func (h *AdminHandlers) showAdminMenu(chatID int64) {
	text := `🔐 *Админ-панель*

*Статистика:*
/admin_stats - Общая статистика

*Рассылки:*
/broadcast ТЕКСТ - Создать рассылку
/broadcasts - Список рассылок
/startbroadcast [id] - Запустить
/stopbroadcast - Остановить
/resumebroadcast - Продолжить`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	h.bot.Send(msg)
}

func (h *AdminHandlers) showStats(ctx context.Context, chatID int64) {
	totalUsers, _ := h.repo.GetTotalUsersCount(ctx)

	text := fmt.Sprintf(`📊 *Статистика*

👥 Всего пользователей: *%d*`, totalUsers)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	h.bot.Send(msg)
}

func (h *AdminHandlers) newBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(strings.TrimPrefix(msg.Text, "/broadcast "))
	if text == "" {
		h.send(msg.Chat.ID, "❌ Укажи текст: /broadcast ТЕКСТ")
		return
	}

	b, err := h.broadcastSvc.CreateBroadcast(ctx, msg.From.FirstName, text)
	if err != nil {
		h.send(msg.Chat.ID, "❌ Не удалось создать рассылку")
		return
	}

	h.send(msg.Chat.ID, fmt.Sprintf("✅ Рассылка #%d создана.\nЗапуск: /startbroadcast %d", b.ID, b.ID))
}

func (h *AdminHandlers) showBroadcasts(ctx context.Context, chatID int64) {
	broadcasts, _ := h.repo.GetAllBroadcasts(ctx)
	if len(broadcasts) == 0 {
		h.send(chatID, "Рассылок пока нет")
		return
	}

	var sb strings.Builder
	sb.WriteString("📣 *Рассылки*\n\n")
	for _, b := range broadcasts {
		fmt.Fprintf(&sb, "#%d [%s] отправлено %d/%d, ошибок %d\n",
			b.ID, b.Status, b.SentCount, b.TotalUsers, b.FailedCount)
	}
	h.send(chatID, sb.String())
}

func (h *AdminHandlers) startBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(msg.Text, "/startbroadcast ")), 10, 64)
	if err != nil {
		h.send(msg.Chat.ID, "❌ Укажи id: /startbroadcast 1")
		return
	}

	if err := h.broadcastSvc.StartBroadcast(ctx, id); err != nil {
		h.send(msg.Chat.ID, "❌ "+err.Error())
		return
	}
	h.send(msg.Chat.ID, fmt.Sprintf("🚀 Рассылка #%d запущена", id))
}

func (h *AdminHandlers) stopBroadcast(chatID int64) {
	if !h.broadcastSvc.IsRunning() {
		h.send(chatID, "Нет активной рассылки")
		return
	}
	h.broadcastSvc.StopBroadcast()
	h.send(chatID, "⏸ Рассылка остановлена")
}

func (h *AdminHandlers) resumeBroadcast(ctx context.Context, chatID int64) {
	if err := h.broadcastSvc.ResumeBroadcast(ctx); err != nil {
		h.send(chatID, "❌ "+err.Error())
		return
	}
	h.send(chatID, "▶️ Рассылка продолжена")
}

func (h *AdminHandlers) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	h.bot.Send(msg)
}
