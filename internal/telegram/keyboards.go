package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

func MainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📋 Мои привычки"),
			tgbotapi.NewKeyboardButton("➕ Новая привычка"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("📊 Мой прогресс"),
			tgbotapi.NewKeyboardButton("✅ Отметить сегодня"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("⚙️ Настройки"),
			tgbotapi.NewKeyboardButton("❓ Помощь"),
		),
	)
}

// dialogNavRow is the back/cancel strip shown under every dialogue prompt.
func dialogNavRow(withSkip bool) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("« Назад", "dlg_back"),
		tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "dlg_cancel"),
	}
	if withSkip {
		row = append([]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⏭ Пропустить", "dlg_skip"),
		}, row...)
	}
	return row
}

func DialogNavKeyboard(withSkip bool) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(dialogNavRow(withSkip))
}

// EmojiKeyboard lays the palette out 4 per row plus the nav strip.
func EmojiKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < len(domain.EmojiPalette); i += 4 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+4 && j < len(domain.EmojiPalette); j++ {
			e := domain.EmojiPalette[j]
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(e, "dlg_emoji_"+e))
		}
		rows = append(rows, row)
	}

	rows = append(rows, dialogNavRow(true))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func FrequencyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Ежедневно", "dlg_freq_daily"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💼 По будням", "dlg_freq_weekdays"),
			tgbotapi.NewInlineKeyboardButtonData("🏖 По выходным", "dlg_freq_weekends"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📆 Раз в неделю", "dlg_freq_weekly"),
		),
		tgbotapi.NewInlineKeyboardRow(dialogNavRow(false)...),
	)
}

// ReminderTimeKeyboard offers preset times; free-form HH:MM also accepted.
func ReminderTimeKeyboard() tgbotapi.InlineKeyboardMarkup {
	times := []string{"07:00", "08:00", "09:00", "12:00", "18:00", "20:00", "21:00", "22:00"}
	var rows [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < len(times); i += 4 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+4 && j < len(times); j++ {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(times[j], "dlg_time_"+times[j]))
		}
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔕 Без напоминания", "dlg_time_none"),
	))
	rows = append(rows, dialogNavRow(false))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func HabitsListKeyboard(habits []*domain.Habit, completedToday map[int64]bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, habit := range habits {
		status := "⬜️"
		if completedToday[habit.ID] {
			status = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s %s", status, habit.Emoji, habit.Name),
				fmt.Sprintf("habit_%d", habit.ID)),
		))
	}

	if len(habits) == 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Создать первую привычку", "create_habit"),
		))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func HabitDetailKeyboard(habitID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", fmt.Sprintf("complete_%d", habitID)),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Пропустить", fmt.Sprintf("skip_%d", habitID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", fmt.Sprintf("stats_%d", habitID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", fmt.Sprintf("delete_%d", habitID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Назад", "back_to_habits"),
		),
	)
}

func ConfirmDeleteKeyboard(habitID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, удалить", fmt.Sprintf("confirm_delete_%d", habitID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", fmt.Sprintf("habit_%d", habitID)),
		),
	)
}

// ReminderKeyboard hangs off a delivered reminder message.
func ReminderKeyboard(habitID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнено", fmt.Sprintf("complete_%d", habitID)),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Пропустить", fmt.Sprintf("skip_%d", habitID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💤 Отложить на 30 мин", fmt.Sprintf("snooze_%d", habitID)),
		),
	)
}

func SettingsKeyboard(user *domain.User) tgbotapi.InlineKeyboardMarkup {
	notif := "🔔 Уведомления: вкл"
	if !user.NotificationsEnabled {
		notif = "🔕 Уведомления: выкл"
	}
	ai := "🤖 AI-напоминания: вкл"
	if !user.AIEnabled {
		ai = "🤖 AI-напоминания: выкл"
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(notif, "settings_notifications"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(ai, "settings_ai"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 Часовой пояс: "+user.Timezone, "settings_timezone"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("💔 Сброс серии: %s", formatBreakDays(user.StreakBreakDays)),
				"settings_breakdays"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📥 Экспорт данных", "export_data"),
		),
	)
}

func formatBreakDays(days int) string {
	if days == 0 {
		return "выкл"
	}
	return fmt.Sprintf("%d дн.", days)
}

func TimezoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	zones := []struct{ label, name string }{
		{"Москва", "Europe/Moscow"},
		{"Калининград", "Europe/Kaliningrad"},
		{"Екатеринбург", "Asia/Yekaterinburg"},
		{"Новосибирск", "Asia/Novosibirsk"},
		{"Владивосток", "Asia/Vladivostok"},
		{"UTC", "UTC"},
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(zones); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+2 && j < len(zones); j++ {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(zones[j].label, "tz_"+zones[j].name))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Назад", "back_to_settings"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func BreakDaysKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Выкл", "breakdays_0"),
			tgbotapi.NewInlineKeyboardButtonData("1 день", "breakdays_1"),
			tgbotapi.NewInlineKeyboardButtonData("2 дня", "breakdays_2"),
			tgbotapi.NewInlineKeyboardButtonData("3 дня", "breakdays_3"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Назад", "back_to_settings"),
		),
	)
}

func BackKeyboard(callback string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Назад", callback),
		),
	)
}
