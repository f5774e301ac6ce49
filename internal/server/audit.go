package server

import (
	"net/http"
	"strings"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/middleware"
	"github.com/region23/testdrive/pkg/logger"
)

// AuditLogger пишет события безопасности и жизненного цикла сервера
type AuditLogger struct {
	logger *logger.Logger
}

// NewAuditLogger создает новый логгер аудита
func NewAuditLogger(log *logger.Logger) *AuditLogger {
	return &AuditLogger{logger: log}
}

func requestFields(r *http.Request) []logger.Field {
	return []logger.Field{
		logger.String("request_id", RequestID(r.Context())),
		logger.String("ip", middleware.RealIP(r)),
		logger.String("user_agent", r.UserAgent()),
		logger.String("method", r.Method),
		logger.String("path", r.URL.Path),
	}
}

// LogFailedAuth логирует неудачную попытку аутентификации
func (a *AuditLogger) LogFailedAuth(r *http.Request, reason string) {
	fields := append(requestFields(r), logger.String("reason", reason))
	a.logger.Warn("Authentication failed", fields...)
}

// LogSuspiciousActivity логирует подозрительную активность
func (a *AuditLogger) LogSuspiciousActivity(r *http.Request, activity string, details map[string]interface{}) {
	fields := append(requestFields(r), logger.String("activity", activity))
	for key, value := range details {
		fields = append(fields, logger.Any(key, value))
	}
	a.logger.Warn("Suspicious activity detected", fields...)
}

// LogTelegramUpdate логирует обработку апдейта, пришедшего через webhook
func (a *AuditLogger) LogTelegramUpdate(update *tgmodels.Update, processingTime time.Duration) {
	var chatID, userID int64
	updateType := "other"

	switch {
	case update.Message != nil:
		updateType = "message"
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
	case update.CallbackQuery != nil:
		updateType = "callback_query"
		userID = update.CallbackQuery.From.ID
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			chatID = msg.Chat.ID
		}
	}

	a.logger.Info("Telegram update processed",
		logger.Int64("update_id", update.ID),
		logger.String("type", updateType),
		logger.Int64("chat_id", chatID),
		logger.Int64("user_id", userID),
		logger.Duration("processing_time", processingTime),
	)
}

// LogSystemEvent логирует системное событие с уровнем info, warn или error
func (a *AuditLogger) LogSystemEvent(event, level string, details map[string]interface{}) {
	fields := []logger.Field{logger.String("event", event)}
	for key, value := range details {
		fields = append(fields, logger.Any(key, value))
	}

	switch strings.ToLower(level) {
	case "error":
		a.logger.Error("System event", fields...)
	case "warn", "warning":
		a.logger.Warn("System event", fields...)
	default:
		a.logger.Info("System event", fields...)
	}
}

// auditMiddleware пишет в аудит запросы webhook и все ответы с ошибкой
func (s *Server) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := middleware.NewStatusRecorder(w)
		next.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status < http.StatusBadRequest && r.URL.Path != webhookPath {
			return
		}

		details := map[string]interface{}{
			"status_code":    status,
			"duration_ms":    time.Since(start).Milliseconds(),
			"content_length": r.ContentLength,
		}

		switch {
		case status >= http.StatusInternalServerError:
			fields := append(requestFields(r), logger.Int("status_code", status))
			s.logger.Error("HTTP request failed", fields...)
		case status >= http.StatusBadRequest:
			s.audit.LogSuspiciousActivity(r, "http_error", details)
		default:
			s.logger.Debug("Webhook request", append(requestFields(r), logger.Int("status_code", status))...)
		}
	})
}
