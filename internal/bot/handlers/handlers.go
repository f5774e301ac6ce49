package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/bot/token"
	storagemodels "github.com/region23/testdrive/internal/storage/models"
)

// UserStore регистрирует пользователя при первом обращении и обновляет имя
type UserStore interface {
	UpsertUser(ctx context.Context, telegramID int64, name, username string) (*storagemodels.User, error)
}

// Transitions переходы диалога
type Transitions interface {
	Next(ctx context.Context, user *storagemodels.User, tok token.Token) ([]screen.Screen, error)
	Handle(ctx context.Context, user *storagemodels.User, data string) ([]screen.Screen, error)
}

// Gateway вывод экранов в Telegram
type Gateway interface {
	Show(ctx context.Context, chatID int64, messageID int, screens []screen.Screen) error
	Send(ctx context.Context, chatID int64, sc screen.Screen) (int, error)
	SendError(ctx context.Context, chatID int64, sc screen.Screen)
	Acknowledge(ctx context.Context, callbackQueryID string) error
}

// ensureUser создает или обновляет пользователя по данным Telegram
func ensureUser(ctx context.Context, users UserStore, from *models.User) (*storagemodels.User, error) {
	return users.UpsertUser(ctx, from.ID, DisplayName(from), from.Username)
}

// DisplayName имя и фамилия через пробел
func DisplayName(u *models.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Command нормализует текст команды: нижний регистр, без @имени_бота и аргументов
func Command(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(text, "/") {
		return text
	}
	if fields := strings.Fields(text); len(fields) > 0 {
		text = fields[0]
	}
	cmd, _, _ := strings.Cut(text, "@")
	return cmd
}
