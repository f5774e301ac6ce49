package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/bot/token"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// DefaultHandler обрабатывает текстовые команды /cars, /my и все остальные сообщения
type DefaultHandler struct {
	gateway Gateway
	users   UserStore
	flow    Transitions
	logger  *logger.Logger
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(gateway Gateway, users UserStore, flow Transitions, log *logger.Logger) *DefaultHandler {
	return &DefaultHandler{
		gateway: gateway,
		users:   users,
		flow:    flow,
		logger:  log,
	}
}

// Handle обрабатывает все остальные типы сообщений
func (h *DefaultHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	var tok token.Token
	switch Command(msg.Text) {
	case "/cars", "cars":
		tok = token.Cars{}
	case "/my", "my bookings":
		tok = token.My{}
	}

	chatID := msg.Chat.ID

	if tok == nil || msg.From == nil {
		// подсказка, как пользоваться ботом
		if _, err := h.gateway.Send(ctx, chatID, screen.Menu(screen.ChooseOption)); err != nil {
			h.logger.Error("Failed to send default message",
				logger.Int64("chat_id", chatID),
				logger.Error(err),
			)
		}
		metrics.RecordUpdate("text", "ok")
		return
	}

	user, err := ensureUser(ctx, h.users, msg.From)
	if err == nil {
		var screens []screen.Screen
		screens, err = h.flow.Next(ctx, user, tok)
		if err == nil {
			// команда всегда приходит новым сообщением, редактировать нечего
			err = h.gateway.Show(ctx, chatID, 0, screens)
		}
	}

	if err != nil {
		h.logger.Error("Failed to handle command",
			logger.Int64("chat_id", chatID),
			logger.String("command", tok.String()),
			logger.Error(err),
		)
		metrics.RecordUpdate("command", "error")
		h.gateway.SendError(ctx, chatID, screen.Fallback())
		return
	}

	metrics.RecordUpdate("command", "ok")
}
