package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/handlers"
	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/validation"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// ChatLimiter ограничение частоты апдейтов по чату
type ChatLimiter interface {
	AllowChat(chatID int64) bool
}

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	startHandler    *handlers.StartHandler
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler

	gateway handlers.Gateway
	limiter ChatLimiter
	notices *noticeThrottle
	logger  *logger.Logger
}

// Deps зависимости диспетчера
type Deps struct {
	Gateway handlers.Gateway
	Users   handlers.UserStore
	Flow    handlers.Transitions
	Window  validation.Window
	Limiter ChatLimiter
	Logger  *logger.Logger
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{
		startHandler:    handlers.NewStartHandler(d.Gateway, d.Users, d.Window, d.Logger),
		callbackHandler: handlers.NewCallbackHandler(d.Gateway, d.Users, d.Flow, d.Logger),
		defaultHandler:  handlers.NewDefaultHandler(d.Gateway, d.Users, d.Flow, d.Logger),
		gateway:         d.Gateway,
		limiter:         d.Limiter,
		notices:         newNoticeThrottle(slowDownNoticeEvery),
		logger:          d.Logger,
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram.
// Паника в обработчике не останавливает бота: пользователь получает меню.
func (d *Dispatcher) HandleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	chatID := updateChatID(update)
	log := d.logger.WithFields(
		logger.Int64("update_id", update.ID),
		logger.Int64("chat_id", chatID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while handling update", logger.String("panic", fmt.Sprint(r)))
			metrics.RecordError("dispatcher", "panic")
			if chatID != 0 {
				d.gateway.SendError(ctx, chatID, screen.Fallback())
			}
		}
	}()

	if chatID != 0 && d.limiter != nil && !d.limiter.AllowChat(chatID) {
		metrics.RecordUpdate("update", "rate_limited")
		if update.CallbackQuery != nil {
			_ = d.gateway.Acknowledge(ctx, update.CallbackQuery.ID)
		}
		if d.notices.allow(chatID) {
			if _, err := d.gateway.Send(ctx, chatID, screen.Menu(screen.SlowDownText)); err != nil {
				log.Warn("Failed to send slow down notice", logger.Error(err))
			}
		}
		return
	}

	if update.CallbackQuery != nil {
		log.Debug("Received callback query", logger.String("data", update.CallbackQuery.Data))
		d.callbackHandler.Handle(ctx, b, update)
		return
	}

	if update.Message != nil {
		log.Debug("Received message", logger.String("text", update.Message.Text))

		switch handlers.Command(update.Message.Text) {
		case "/start":
			d.startHandler.Handle(ctx, b, update)
		case "/help":
			d.startHandler.HandleHelp(ctx, b, update)
		default:
			d.defaultHandler.Handle(ctx, b, update)
		}
		return
	}

	log.Debug("Received unsupported update type")
	metrics.RecordUpdate("other", "skipped")
}

func updateChatID(update *models.Update) int64 {
	switch {
	case update.CallbackQuery != nil:
		chatID, _, _ := handlers.CallbackTarget(update.CallbackQuery)
		return chatID
	case update.Message != nil:
		return update.Message.Chat.ID
	}
	return 0
}

// slowDownNoticeEvery не чаще одного предупреждения о лимите на чат
const slowDownNoticeEvery = time.Minute

// noticeThrottle помнит, когда чат последний раз получал предупреждение
type noticeThrottle struct {
	mu       sync.Mutex
	last     map[int64]time.Time
	interval time.Duration
	now      func() time.Time
}

func newNoticeThrottle(interval time.Duration) *noticeThrottle {
	return &noticeThrottle{
		last:     make(map[int64]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

func (n *noticeThrottle) allow(chatID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if at, ok := n.last[chatID]; ok && now.Sub(at) < n.interval {
		return false
	}

	if len(n.last) >= 1024 {
		for id, at := range n.last {
			if now.Sub(at) >= n.interval {
				delete(n.last, id)
			}
		}
	}
	n.last[chatID] = now
	return true
}
