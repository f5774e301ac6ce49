package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/validation"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// StartHandler обрабатывает команды /start и /help
type StartHandler struct {
	gateway Gateway
	users   UserStore
	window  validation.Window
	logger  *logger.Logger
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(gateway Gateway, users UserStore, window validation.Window, log *logger.Logger) *StartHandler {
	return &StartHandler{
		gateway: gateway,
		users:   users,
		window:  window,
		logger:  log,
	}
}

// Handle обрабатывает команду /start
func (h *StartHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	chatID := msg.Chat.ID

	user, err := ensureUser(ctx, h.users, msg.From)
	if err != nil {
		h.logger.Error("Failed to register user",
			logger.Int64("chat_id", chatID),
			logger.Int64("telegram_id", msg.From.ID),
			logger.Error(err),
		)
		metrics.RecordUpdate("start", "error")
		h.gateway.SendError(ctx, chatID, screen.Fallback())
		return
	}

	if _, err := h.gateway.Send(ctx, chatID, screen.Welcome(user.Name)); err != nil {
		h.logger.Error("Failed to send welcome message",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
		metrics.RecordUpdate("start", "error")
		return
	}

	metrics.RecordUpdate("start", "ok")
}

// HandleHelp отправляет справку
func (h *StartHandler) HandleHelp(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if _, err := h.gateway.Send(ctx, chatID, screen.Help(h.window)); err != nil {
		h.logger.Error("Failed to send help",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
		metrics.RecordUpdate("help", "error")
		return
	}

	metrics.RecordUpdate("help", "ok")
}
