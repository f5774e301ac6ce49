package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	gateway Gateway
	users   UserStore
	flow    Transitions
	logger  *logger.Logger
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(gateway Gateway, users UserStore, flow Transitions, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		gateway: gateway,
		users:   users,
		flow:    flow,
		logger:  log,
	}
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil {
		return
	}

	// Отвечаем сразу, чтобы Telegram не ждал окончания обработки
	if err := h.gateway.Acknowledge(ctx, cb.ID); err != nil {
		h.logger.Warn("Failed to answer callback query",
			logger.String("callback_id", cb.ID),
			logger.Error(err),
		)
	}

	chatID, messageID, ok := CallbackTarget(cb)
	if !ok {
		h.logger.Warn("Callback without message", logger.String("data", cb.Data))
		metrics.RecordUpdate("callback", "skipped")
		return
	}

	user, err := ensureUser(ctx, h.users, &cb.From)
	if err == nil {
		var screens []screen.Screen
		screens, err = h.flow.Handle(ctx, user, cb.Data)
		if err == nil {
			err = h.gateway.Show(ctx, chatID, messageID, screens)
		}
	}

	if err != nil {
		h.logger.Error("Callback handling failed",
			logger.Int64("chat_id", chatID),
			logger.String("data", cb.Data),
			logger.Error(err),
		)
		metrics.RecordUpdate("callback", "error")
		h.gateway.SendError(ctx, chatID, screen.Fallback())
		return
	}

	metrics.RecordUpdate("callback", "ok")
}

// CallbackTarget возвращает чат и сообщение, к которому привязана кнопка.
// Старые сообщения Telegram отдает как недоступные, но чат и id в них есть.
func CallbackTarget(cb *models.CallbackQuery) (chatID int64, messageID int, ok bool) {
	switch {
	case cb.Message.Message != nil:
		return cb.Message.Message.Chat.ID, cb.Message.Message.ID, true
	case cb.Message.InaccessibleMessage != nil:
		return cb.Message.InaccessibleMessage.Chat.ID, cb.Message.InaccessibleMessage.MessageID, true
	}
	return 0, 0, false
}
