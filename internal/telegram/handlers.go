package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timoshinoleg-eng/habit/internal/clock"
	"github.com/timoshinoleg-eng/habit/internal/dialog"
	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/service"
)

const snoozeDelay = 30 * time.Minute

// sender is the slice of the bot API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Handlers struct {
	bot              sender
	repo             repository.Repository
	habitSvc         *service.HabitService
	streakSvc        *service.StreakService
	reminderSvc      *service.ReminderService
	exportSvc        *service.ExportService
	aiSvc            *service.AIService
	machine          *dialog.Machine
	sessions         *dialog.Store
	timeout          *dialog.TimeoutMonitor
	adminHandlers    *AdminHandlers
	clk              clock.Clock
	defaultBreakDays int
}

func NewHandlers(
	bot sender,
	repo repository.Repository,
	habitSvc *service.HabitService,
	streakSvc *service.StreakService,
	reminderSvc *service.ReminderService,
	exportSvc *service.ExportService,
	aiSvc *service.AIService,
	machine *dialog.Machine,
	sessions *dialog.Store,
	timeout *dialog.TimeoutMonitor,
	clk clock.Clock,
	defaultBreakDays int,
) *Handlers {
	return &Handlers{
		bot:              bot,
		repo:             repo,
		habitSvc:         habitSvc,
		streakSvc:        streakSvc,
		reminderSvc:      reminderSvc,
		exportSvc:        exportSvc,
		aiSvc:            aiSvc,
		machine:          machine,
		sessions:         sessions,
		timeout:          timeout,
		clk:              clk,
		defaultBreakDays: defaultBreakDays,
	}
}

func (h *Handlers) SetAdminHandlers(ah *AdminHandlers) {
	h.adminHandlers = ah
}

func (h *Handlers) HandleUpdate(update tgbotapi.Update) {
	ctx := context.Background()

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	}
}

func (h *Handlers) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if h.adminHandlers != nil && h.adminHandlers.HandleAdminCommand(ctx, msg) {
		return
	}

	user, err := h.ensureUser(ctx, msg.From)
	if err != nil {
		log.Printf("Error registering user %d: %v", msg.From.ID, err)
		h.sendError(msg.Chat.ID, "Ошибка получения данных")
		return
	}

	h.checkStreaks(ctx, user)

	// An open dialogue swallows every non-command message.
	if _, ok := h.sessions.Get(msg.From.ID); ok {
		if msg.Text == "/cancel" {
			h.machine.Cancel(msg.From.ID)
			h.sendMessage(msg.Chat.ID, "❌ Создание привычки отменено")
			return
		}
		if h.timeout.Check(msg.From.ID) {
			h.sendMessage(msg.Chat.ID, "⌛ Диалог истёк из-за неактивности. Начни заново: /new")
			return
		}
		h.advanceDialog(ctx, msg.Chat.ID, msg.From.ID, dialog.Input{Text: msg.Text})
		return
	}

	switch {
	case msg.Text == "/start" || strings.HasPrefix(msg.Text, "/start "):
		h.handleStart(ctx, msg)
	case msg.Text == "📋 Мои привычки" || msg.Text == "/my_habits":
		h.handleHabits(ctx, msg, user)
	case msg.Text == "➕ Новая привычка" || msg.Text == "/new":
		h.startDialog(ctx, msg.Chat.ID, msg.From.ID, user)
	case msg.Text == "📊 Мой прогресс" || msg.Text == "/my_progress":
		h.handleProgress(ctx, msg, user)
	case msg.Text == "✅ Отметить сегодня" || msg.Text == "/today":
		h.handleToday(ctx, msg, user)
	case msg.Text == "⚙️ Настройки" || msg.Text == "/settings":
		h.handleSettings(ctx, msg, user)
	case msg.Text == "/advice":
		h.handleAdvice(ctx, msg, user)
	case msg.Text == "❓ Помощь" || msg.Text == "/help":
		h.handleHelp(msg)
	default:
		h.handleUnknown(msg)
	}
}

// ensureUser upserts the sender and returns the stored row.
func (h *Handlers) ensureUser(ctx context.Context, from *tgbotapi.User) (*domain.User, error) {
	user := &domain.User{
		TelegramID:           from.ID,
		Username:             from.UserName,
		FirstName:            from.FirstName,
		Timezone:             domain.DefaultTimezone,
		NotificationsEnabled: true,
		StreakBreakDays:      h.defaultBreakDays,
	}
	if err := h.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return h.repo.GetUserByTelegramID(ctx, from.ID)
}

// checkStreaks runs the lazy streak evaluation and tells the user about
// any series that just got reset.
func (h *Handlers) checkStreaks(ctx context.Context, user *domain.User) {
	broken, err := h.streakSvc.CheckUser(ctx, user)
	if err != nil {
		log.Printf("Error checking streaks for user %d: %v", user.ID, err)
		return
	}
	if len(broken) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString("💔 *Серия прервана*\n\nТы давно не отмечал привычки:\n")
	for _, b := range broken {
		fmt.Fprintf(&sb, "• %s %s — была серия %d дн.\n", b.Habit.Emoji, b.Habit.Name, b.PriorStreak)
	}
	sb.WriteString("\nНачни заново — лучшая серия сохранена! 💪")

	h.sendMessage(user.TelegramID, sb.String())
}

// ==================== COMMANDS ====================

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := fmt.Sprintf(`👋 Привет, *%s*!

Я помогу тебе сформировать полезные привычки и не терять серии.

🎯 *Что я умею:*
• Создавать привычки в пару шагов
• Напоминать в нужное время по твоему часовому поясу
• Считать серии и показывать прогресс

📌 Нажми "➕ Новая привычка" чтобы начать!`, msg.From.FirstName)

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = MainMenuKeyboard()
	h.bot.Send(reply)
}

func (h *Handlers) handleHabits(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	habits, _ := h.habitSvc.GetUserHabits(ctx, user.ID)
	completedToday, _ := h.habitSvc.GetTodayStatus(ctx, user)

	text := "📋 *Мои привычки*\n\n"
	if len(habits) == 0 {
		text += "У тебя пока нет привычек. Создай первую!"
	} else {
		text += "Выбери привычку для подробностей:"
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = HabitsListKeyboard(habits, completedToday)
	h.bot.Send(reply)
}

func (h *Handlers) handleProgress(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	stats, err := h.habitSvc.GetUserStats(ctx, user.ID)
	if err != nil {
		h.sendError(msg.Chat.ID, "Ошибка получения статистики")
		return
	}

	text := fmt.Sprintf(`📊 *Мой прогресс*

📌 Привычек: *%d* (активных: %d)
✅ Всего выполнено: *%d*
🏆 Лучшая серия: *%d дн.*`,
		stats.TotalHabits, stats.ActiveHabits, stats.TotalCompletions, stats.BestStreak)

	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleToday(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	habits, _ := h.habitSvc.GetUserHabits(ctx, user.ID)
	if len(habits) == 0 {
		h.sendMessage(msg.Chat.ID, "У тебя пока нет привычек. Создай первую: /new")
		return
	}

	completedToday, _ := h.habitSvc.GetTodayStatus(ctx, user)
	completed := 0
	for _, done := range completedToday {
		if done {
			completed++
		}
	}

	text := fmt.Sprintf("✅ *Сегодня*\n\nВыполнено: %d из %d", completed, len(habits))

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = HabitsListKeyboard(habits, completedToday)
	h.bot.Send(reply)
}

func (h *Handlers) handleSettings(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, "⚙️ *Настройки*")
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = SettingsKeyboard(user)
	h.bot.Send(reply)
}

func (h *Handlers) handleAdvice(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	if h.aiSvc == nil || !h.aiSvc.IsEnabled() {
		h.sendMessage(msg.Chat.ID, "🤖 AI-советы сейчас недоступны")
		return
	}

	habits, _ := h.habitSvc.GetUserHabits(ctx, user.ID)
	if len(habits) == 0 {
		h.sendMessage(msg.Chat.ID, "Сначала создай привычку: /new")
		return
	}

	advice, err := h.aiSvc.HabitAdvice(ctx, user, habits)
	if err != nil {
		log.Printf("Error generating advice for user %d: %v", user.ID, err)
		h.sendMessage(msg.Chat.ID, "🤖 Не получилось придумать совет, попробуй позже")
		return
	}
	h.sendMessage(msg.Chat.ID, "💡 "+advice)
}

func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	text := `📖 *Справка*

*Команды:*
/start - Начать
/my_habits - Мои привычки
/new - Создать привычку
/today - Отметить сегодня
/my_progress - Мой прогресс
/settings - Настройки
/advice - AI-совет
/cancel - Прервать создание привычки

*Как это работает:*
• Создай привычку и выбери время напоминания
• Отмечай выполнение каждый день и копи серию 🔥
• Пропустишь несколько дней — серия сбросится
  (настраивается в /settings)`

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = "Markdown"
	h.bot.Send(reply)
}

func (h *Handlers) handleUnknown(msg *tgbotapi.Message) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Используй кнопки меню или /help")
	reply.ReplyMarkup = MainMenuKeyboard()
	h.bot.Send(reply)
}

// ==================== DIALOGUE ====================

func (h *Handlers) startDialog(ctx context.Context, chatID, telegramID int64, user *domain.User) {
	count, err := h.repo.CountUserHabits(ctx, user.ID)
	if err != nil {
		log.Printf("Error counting habits for user %d: %v", user.ID, err)
	}
	if count >= domain.MaxHabitsPerUser {
		h.sendMessage(chatID, fmt.Sprintf("⚠️ Достигнут лимит: %d привычек. Удали старые, чтобы добавить новые.", domain.MaxHabitsPerUser))
		return
	}

	h.machine.Start(telegramID)
	reply := tgbotapi.NewMessage(chatID, "➕ *Новая привычка*\n\nВведи название привычки:")
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = DialogNavKeyboard(false)
	h.bot.Send(reply)
}

// advanceDialog feeds one event into the state machine and renders the
// outcome: a validation retry, the next step's prompt, or the result.
func (h *Handlers) advanceDialog(ctx context.Context, chatID, userID int64, in dialog.Input) {
	session, ok := h.sessions.Get(userID)
	if !ok {
		return
	}

	result, err := h.machine.Advance(ctx, session, in)
	if err != nil {
		var verr *dialog.ValidationError
		if errors.As(err, &verr) {
			h.sendDialogPrompt(chatID, verr.Step, validationText(verr))
			return
		}
		log.Printf("Error advancing dialog for user %d: %v", userID, err)
		h.sendError(chatID, "Не удалось сохранить привычку, попробуй ещё раз")
		h.sendDialogPrompt(chatID, session.Step, "")
		return
	}

	if result.Done {
		h.finishDialog(chatID, result.Habit)
		return
	}
	h.sendDialogPrompt(chatID, result.Step, "")
}

func (h *Handlers) finishDialog(chatID int64, habit *domain.Habit) {
	reminder := "без напоминания"
	if habit.ReminderTime != nil {
		reminder = "напоминание в " + *habit.ReminderTime
	}

	text := fmt.Sprintf("🎉 *Привычка создана!*\n\n%s *%s*\n%s, %s\n\nОтмечай выполнение каждый день! 🔥",
		habit.Emoji, habit.Name, frequencyLabel(habit.Frequency), reminder)

	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = MainMenuKeyboard()
	h.bot.Send(reply)
}

func (h *Handlers) sendDialogPrompt(chatID int64, step dialog.Step, prefix string) {
	var (
		text     string
		keyboard tgbotapi.InlineKeyboardMarkup
	)

	switch step {
	case dialog.StepName:
		text = "Введи название привычки:"
		keyboard = DialogNavKeyboard(false)
	case dialog.StepDescription:
		text = "Добавь описание (или пропусти):"
		keyboard = DialogNavKeyboard(true)
	case dialog.StepEmoji:
		text = "Выбери эмодзи:"
		keyboard = EmojiKeyboard()
	case dialog.StepFrequency:
		text = "Как часто выполнять привычку?"
		keyboard = FrequencyKeyboard()
	case dialog.StepReminderTime:
		text = "Когда напоминать? Выбери время или введи своё в формате ЧЧ:ММ:"
		keyboard = ReminderTimeKeyboard()
	}

	if prefix != "" {
		text = prefix + "\n\n" + text
	}

	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = keyboard
	h.bot.Send(reply)
}

// validationText maps an error code to a user-facing retry message.
func validationText(verr *dialog.ValidationError) string {
	switch verr.Code {
	case dialog.CodeTooShort:
		return fmt.Sprintf("❌ Слишком коротко (минимум %d символа)", domain.NameMinLen)
	case dialog.CodeTooLong:
		if verr.Step == dialog.StepDescription {
			return fmt.Sprintf("❌ Слишком длинно (максимум %d символов)", domain.DescriptionMaxLen)
		}
		return fmt.Sprintf("❌ Слишком длинно (максимум %d символов)", domain.NameMaxLen)
	case dialog.CodeForbiddenPrefix:
		return "❌ Название не может начинаться с / или !"
	case dialog.CodeBadFormat:
		switch verr.Step {
		case dialog.StepEmoji:
			return "❌ Выбери эмодзи из предложенных"
		case dialog.StepReminderTime:
			return "❌ Неверный формат. Введи время как ЧЧ:ММ, например 08:30"
		}
		return "❌ Неверный формат"
	case dialog.CodeOutOfRange:
		return "❌ Такого времени не бывает. Часы 00-23, минуты 00-59"
	}
	return "❌ Неверный ввод"
}

func frequencyLabel(f domain.Frequency) string {
	switch f {
	case domain.FrequencyDaily:
		return "ежедневно"
	case domain.FrequencyWeekdays:
		return "по будням"
	case domain.FrequencyWeekends:
		return "по выходным"
	case domain.FrequencyWeekly:
		return "раз в неделю"
	case domain.FrequencyCustom:
		return "по выбранным дням"
	}
	return string(f)
}

// ==================== CALLBACKS ====================

func (h *Handlers) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	h.bot.Send(tgbotapi.NewCallback(callback.ID, ""))

	data := callback.Data
	chatID := callback.Message.Chat.ID

	// Dialogue callbacks run through the same timeout gate as messages.
	if strings.HasPrefix(data, "dlg_") {
		if _, ok := h.sessions.Get(callback.From.ID); !ok {
			return
		}
		if data != "dlg_cancel" && h.timeout.Check(callback.From.ID) {
			h.sendMessage(chatID, "⌛ Диалог истёк из-за неактивности. Начни заново: /new")
			return
		}
		h.handleDialogCallback(ctx, callback)
		return
	}

	// Button presses count as interaction for the lazy streak check too.
	if user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID); err == nil {
		h.checkStreaks(ctx, user)
	}

	switch {
	case data == "create_habit":
		user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
		if err != nil {
			return
		}
		h.startDialog(ctx, chatID, callback.From.ID, user)

	case strings.HasPrefix(data, "complete_"):
		h.handleCompleteCallback(ctx, callback)

	case strings.HasPrefix(data, "skip_"):
		h.handleSkipCallback(ctx, callback)

	case strings.HasPrefix(data, "snooze_"):
		h.handleSnoozeCallback(ctx, callback)

	case strings.HasPrefix(data, "habit_"):
		h.handleHabitDetailCallback(ctx, callback)

	case strings.HasPrefix(data, "stats_"):
		h.handleStatsCallback(ctx, callback)

	case strings.HasPrefix(data, "delete_"):
		h.handleDeleteCallback(ctx, callback)

	case strings.HasPrefix(data, "confirm_delete_"):
		h.handleConfirmDeleteCallback(ctx, callback)

	case data == "back_to_habits":
		h.handleBackToHabits(ctx, callback)

	case data == "settings_notifications", data == "settings_ai":
		h.toggleSetting(ctx, callback)

	case data == "settings_timezone":
		keyboard := TimezoneKeyboard()
		h.editMessage(chatID, callback.Message.MessageID, "🌍 Выбери часовой пояс:", &keyboard)

	case strings.HasPrefix(data, "tz_"):
		h.setTimezone(ctx, callback)

	case data == "settings_breakdays":
		keyboard := BreakDaysKeyboard()
		h.editMessage(chatID, callback.Message.MessageID,
			"💔 Через сколько дней без отметок сбрасывать серию?", &keyboard)

	case strings.HasPrefix(data, "breakdays_"):
		h.setBreakDays(ctx, callback)

	case data == "back_to_settings":
		h.refreshSettings(ctx, callback)

	case data == "export_data":
		h.handleExportCallback(ctx, callback)
	}
}

func (h *Handlers) handleDialogCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	data := callback.Data
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	switch {
	case data == "dlg_cancel":
		h.machine.Cancel(userID)
		h.editMessage(chatID, callback.Message.MessageID, "❌ Создание привычки отменено", nil)

	case data == "dlg_back":
		session, ok := h.sessions.Get(userID)
		if !ok {
			return
		}
		step, err := h.machine.Back(session)
		if errors.Is(err, dialog.ErrNoHistory) {
			h.sendMessage(chatID, "Это первый шаг, назад некуда. /cancel чтобы выйти")
			return
		}
		h.sendDialogPrompt(chatID, step, "")

	case data == "dlg_skip":
		h.advanceDialog(ctx, chatID, userID, dialog.Input{Skip: true})

	case strings.HasPrefix(data, "dlg_emoji_"):
		h.advanceDialog(ctx, chatID, userID, dialog.Input{Text: strings.TrimPrefix(data, "dlg_emoji_")})

	case strings.HasPrefix(data, "dlg_freq_"):
		h.advanceDialog(ctx, chatID, userID, dialog.Input{Text: strings.TrimPrefix(data, "dlg_freq_")})

	case strings.HasPrefix(data, "dlg_time_"):
		h.advanceDialog(ctx, chatID, userID, dialog.Input{Text: strings.TrimPrefix(data, "dlg_time_")})
	}
}

func (h *Handlers) habitFromCallback(ctx context.Context, callback *tgbotapi.CallbackQuery, prefix string) (*domain.Habit, *domain.User, error) {
	habitID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, prefix), 10, 64)
	if err != nil {
		return nil, nil, err
	}
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return nil, nil, err
	}
	habit, err := h.habitSvc.GetHabit(ctx, habitID, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return habit, user, nil
}

func (h *Handlers) handleCompleteCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, user, err := h.habitFromCallback(ctx, callback, "complete_")
	if err != nil {
		return
	}

	if err := h.habitSvc.CompleteHabit(ctx, habit, user); err != nil {
		log.Printf("Error completing habit %d: %v", habit.ID, err)
		h.sendError(callback.Message.Chat.ID, "Не удалось отметить привычку")
		return
	}

	// No more reminders for this habit today.
	localDate := clock.DateOf(h.clk.Now(), clock.UserLocation(user.Timezone))
	h.reminderSvc.MarkCompleted(habit.ID, localDate)

	text := fmt.Sprintf("🎉 *%s* выполнено!\n🔥 Серия: %d дн.", habit.Name, habit.CurrentStreak)
	keyboard := BackKeyboard("back_to_habits")
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func (h *Handlers) handleSkipCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, user, err := h.habitFromCallback(ctx, callback, "skip_")
	if err != nil {
		return
	}

	prior := habit.CurrentStreak
	if err := h.habitSvc.SkipHabit(ctx, habit, user); err != nil {
		log.Printf("Error skipping habit %d: %v", habit.ID, err)
		return
	}

	text := fmt.Sprintf("⏭ *%s* пропущено сегодня", habit.Name)
	if prior > 0 {
		text += fmt.Sprintf("\n💔 Серия %d дн. сброшена", prior)
	}
	keyboard := BackKeyboard("back_to_habits")
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func (h *Handlers) handleSnoozeCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, user, err := h.habitFromCallback(ctx, callback, "snooze_")
	if err != nil {
		return
	}

	telegramID := user.TelegramID
	habitID := habit.ID
	name := habit.Name
	emoji := habit.Emoji
	time.AfterFunc(snoozeDelay, func() {
		text := fmt.Sprintf("%s *Напоминание!*\n\nПора выполнить: *%s*", emoji, name)
		if err := h.SendReminder(telegramID, habitID, text); err != nil {
			log.Printf("Error sending snoozed reminder for habit %d: %v", habitID, err)
		}
	})

	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID,
		fmt.Sprintf("💤 Напомню про *%s* через 30 минут", name), nil)
}

func (h *Handlers) handleHabitDetailCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, _, err := h.habitFromCallback(ctx, callback, "habit_")
	if err != nil {
		return
	}

	reminder := "не установлено"
	if habit.ReminderTime != nil {
		reminder = *habit.ReminderTime
	}

	text := fmt.Sprintf(`%s *%s*

📅 Периодичность: %s
⏰ Напоминание: %s
🔥 Серия: %d дн. | 🏆 Лучшая: %d дн.
✅ Всего выполнено: %d`,
		habit.Emoji, habit.Name, frequencyLabel(habit.Frequency), reminder,
		habit.CurrentStreak, habit.BestStreak, habit.TotalDone)

	if habit.Description != "" {
		text += "\n\n📝 " + habit.Description
	}

	keyboard := HabitDetailKeyboard(habit.ID)
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func (h *Handlers) handleStatsCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, _, err := h.habitFromCallback(ctx, callback, "stats_")
	if err != nil {
		return
	}

	stats, err := h.habitSvc.GetHabitStats(ctx, habit.ID)
	if err != nil {
		h.sendError(callback.Message.Chat.ID, "Ошибка получения статистики")
		return
	}

	text := fmt.Sprintf(`📊 *%s*

🔥 Текущая серия: *%d* дн.
🏆 Лучшая серия: *%d* дн.
📅 Дней отслеживания: %d
✅ Выполнено: %d
📈 Процент: *%.0f%%*`,
		stats.HabitName, stats.CurrentStreak, stats.BestStreak,
		stats.TotalDays, stats.CompletedDays, stats.CompletionRate)

	keyboard := BackKeyboard(fmt.Sprintf("habit_%d", habit.ID))
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func (h *Handlers) handleDeleteCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habit, _, err := h.habitFromCallback(ctx, callback, "delete_")
	if err != nil {
		return
	}

	text := fmt.Sprintf("🗑 Удалить *%s*?\n\nСтатистика будет потеряна!", habit.Name)
	keyboard := ConfirmDeleteKeyboard(habit.ID)
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

func (h *Handlers) handleConfirmDeleteCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habitID, _ := strconv.ParseInt(strings.TrimPrefix(callback.Data, "confirm_delete_"), 10, 64)
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}

	if err := h.habitSvc.DeleteHabit(ctx, habitID, user.ID); err != nil {
		log.Printf("Error deleting habit %d: %v", habitID, err)
		return
	}

	keyboard := BackKeyboard("back_to_habits")
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "✅ Привычка удалена", &keyboard)
}

func (h *Handlers) handleBackToHabits(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}
	habits, _ := h.habitSvc.GetUserHabits(ctx, user.ID)
	completedToday, _ := h.habitSvc.GetTodayStatus(ctx, user)

	text := "📋 *Мои привычки*\n\n"
	if len(habits) == 0 {
		text += "У тебя пока нет привычек."
	} else {
		text += "Выбери привычку:"
	}

	keyboard := HabitsListKeyboard(habits, completedToday)
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, text, &keyboard)
}

// ==================== SETTINGS ====================

func (h *Handlers) toggleSetting(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}

	switch callback.Data {
	case "settings_notifications":
		user.NotificationsEnabled = !user.NotificationsEnabled
	case "settings_ai":
		user.AIEnabled = !user.AIEnabled
	}

	h.saveSettings(ctx, callback, user)
}

func (h *Handlers) setTimezone(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}
	user.Timezone = strings.TrimPrefix(callback.Data, "tz_")
	h.saveSettings(ctx, callback, user)
}

func (h *Handlers) setBreakDays(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}
	days, err := strconv.Atoi(strings.TrimPrefix(callback.Data, "breakdays_"))
	if err != nil || days < 0 || days > 3 {
		return
	}
	user.StreakBreakDays = days
	h.saveSettings(ctx, callback, user)
}

func (h *Handlers) saveSettings(ctx context.Context, callback *tgbotapi.CallbackQuery, user *domain.User) {
	if err := h.repo.UpdateUserSettings(ctx, user.ID, user.Timezone, user.NotificationsEnabled, user.AIEnabled, user.StreakBreakDays); err != nil {
		log.Printf("Error updating settings for user %d: %v", user.ID, err)
		h.sendError(callback.Message.Chat.ID, "Не удалось сохранить настройки")
		return
	}
	keyboard := SettingsKeyboard(user)
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "⚙️ *Настройки*", &keyboard)
}

func (h *Handlers) refreshSettings(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}
	keyboard := SettingsKeyboard(user)
	h.editMessage(callback.Message.Chat.ID, callback.Message.MessageID, "⚙️ *Настройки*", &keyboard)
}

func (h *Handlers) handleExportCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	user, err := h.repo.GetUserByTelegramID(ctx, callback.From.ID)
	if err != nil {
		return
	}

	data, err := h.exportSvc.ExportToCSV(ctx, user.ID)
	if err != nil {
		log.Printf("Error exporting data for user %d: %v", user.ID, err)
		h.sendError(callback.Message.Chat.ID, "Не удалось выгрузить данные")
		return
	}

	doc := tgbotapi.NewDocument(callback.Message.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("habits_%s.csv", h.clk.Now().Format("2006-01-02")),
		Bytes: data,
	})
	doc.Caption = "📥 Твои данные"
	h.bot.Send(doc)
}

// ==================== OUTBOUND ====================

// SendReminder delivers one reminder with action buttons. Wired into the
// scheduler as its notify func.
func (h *Handlers) SendReminder(telegramID int64, habitID int64, text string) error {
	msg := tgbotapi.NewMessage(telegramID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = ReminderKeyboard(habitID)

	_, err := h.bot.Send(msg)
	return err
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	h.bot.Send(msg)
}

func (h *Handlers) sendError(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "❌ "+text)
	h.bot.Send(msg)
}

func (h *Handlers) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if keyboard != nil {
		edit.ReplyMarkup = keyboard
	}
	h.bot.Send(edit)
}
