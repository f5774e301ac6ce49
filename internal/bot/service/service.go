package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/bot/keyboard"
	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/pkg/errors"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// TelegramAPI методы Bot API, которые использует сервис. *bot.Bot их реализует.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

var _ TelegramAPI = (*bot.Bot)(nil)

// Service отправляет экраны в Telegram
type Service struct {
	api    TelegramAPI
	logger *logger.Logger
}

// NewService создает новый экземпляр сервиса бота
func NewService(api TelegramAPI, log *logger.Logger) *Service {
	return &Service{
		api:    api,
		logger: log,
	}
}

// Show выводит результат перехода: первый экран заменяет сообщение с нажатой
// кнопкой, остальные уходят новыми сообщениями
func (s *Service) Show(ctx context.Context, chatID int64, messageID int, screens []screen.Screen) error {
	for i, sc := range screens {
		var err error
		if i == 0 {
			_, err = s.RenderOrEdit(ctx, chatID, messageID, sc)
		} else {
			_, err = s.Send(ctx, chatID, sc)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RenderOrEdit редактирует сообщение messageID, а если Telegram отказал или
// messageID == 0, отправляет новое. Возвращает id сообщения с экраном.
func (s *Service) RenderOrEdit(ctx context.Context, chatID int64, messageID int, sc screen.Screen) (int, error) {
	if messageID != 0 {
		params := &bot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      sc.Text,
		}
		if kb := keyboard.Inline(sc); kb != nil {
			params.ReplyMarkup = kb
		}

		_, err := s.api.EditMessageText(ctx, params)
		if err == nil {
			return messageID, nil
		}
		if isNotModified(err) {
			// повторное нажатие той же кнопки: на экране уже нужный текст
			return messageID, nil
		}

		metrics.RenderFallbacks.Inc()
		s.logger.Debug("Edit failed, falling back to send",
			logger.Int64("chat_id", chatID),
			logger.Int("message_id", messageID),
			logger.Error(err),
		)
	}

	return s.Send(ctx, chatID, sc)
}

// Send отправляет экран новым сообщением
func (s *Service) Send(ctx context.Context, chatID int64, sc screen.Screen) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   sc.Text,
	}
	if kb := keyboard.Inline(sc); kb != nil {
		params.ReplyMarkup = kb
	}

	msg, err := s.api.SendMessage(ctx, params)
	if err != nil {
		metrics.RecordError("telegram", "send_message")
		return 0, errors.ErrTelegramAPI.WithError(err).WithContext(map[string]interface{}{
			"chat_id": chatID,
		})
	}
	if msg == nil {
		return 0, nil
	}
	return msg.ID, nil
}

// SendError отправляет экран, ошибки только логируются
func (s *Service) SendError(ctx context.Context, chatID int64, sc screen.Screen) {
	if _, err := s.Send(ctx, chatID, sc); err != nil {
		s.logger.Error("Failed to send error screen",
			logger.Int64("chat_id", chatID),
			logger.Error(err),
		)
	}
}

// Acknowledge отвечает на callback query, чтобы убрать индикатор загрузки
func (s *Service) Acknowledge(ctx context.Context, callbackQueryID string) error {
	return s.AnswerCallbackQuery(ctx, callbackQueryID, "")
}

// AnswerCallbackQuery отвечает на callback query с необязательным текстом
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	if _, err := s.api.AnswerCallbackQuery(ctx, params); err != nil {
		metrics.RecordError("telegram", "answer_callback")
		return fmt.Errorf("failed to answer callback query: %w", err)
	}
	return nil
}

// RegisterCommands регистрирует команды меню бота
func (s *Service) RegisterCommands(ctx context.Context) error {
	_, err := s.api.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: keyboard.Commands(),
	})
	if err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

// SendReminder отправляет напоминание в личный чат пользователя
func (s *Service) SendReminder(ctx context.Context, reminder *models.Reminder) error {
	_, err := s.Send(ctx, reminder.TelegramID, screen.Reminder(reminder.CarModel, reminder.SlotStart))
	return err
}
