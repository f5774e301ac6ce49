package keyboard

import (
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/screen"
)

// Inline создает inline клавиатуру из кнопок экрана.
// Для экрана без кнопок возвращает nil.
func Inline(s screen.Screen) *models.InlineKeyboardMarkup {
	if !s.HasKeyboard() {
		return nil
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(s.Rows))
	for _, row := range s.Rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Token.String(),
			})
		}
		rows = append(rows, buttons)
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// Commands команды меню бота
func Commands() []models.BotCommand {
	return []models.BotCommand{
		{Command: "start", Description: "Start and see menu"},
		{Command: "cars", Description: "Browse cars and book"},
		{Command: "my", Description: "My bookings"},
		{Command: "help", Description: "Help"},
	}
}
