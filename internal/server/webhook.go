package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

const (
	// SecretTokenHeader заголовок, которым Telegram подписывает webhook
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxUpdateBytes = 1 << 20
	updateTimeout  = 30 * time.Second
)

// handleWebhook принимает апдейт Telegram и отдает его диспетчеру в фоне
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !s.verifySecretToken(r) {
		s.audit.LogFailedAuth(r, "invalid_webhook_secret")
		metrics.RecordError("webhook", "unauthorized")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var update tgmodels.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		s.logger.Warn("Failed to decode Telegram update",
			logger.String("request_id", RequestID(r.Context())),
			logger.Error(err),
		)
		metrics.RecordError("webhook", "decode")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// Telegram получает 200 сразу после разбора, обработка идет в фоне
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), updateTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		s.updates.HandleUpdate(ctx, s.telegramBot, &update)
		s.audit.LogTelegramUpdate(&update, time.Since(start))
	}()
}

// drainUpdates ждет фоновые обработки апдейтов, но не дольше ctx
func (s *Server) drainUpdates(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending updates not finished: %w", ctx.Err())
	}
}

// verifySecretToken сверяет заголовок с секретом, заданным при SetWebhook.
// Без секрета проверка отключена.
func (s *Server) verifySecretToken(r *http.Request) bool {
	secret := s.config.Telegram.SecretToken
	if secret == "" {
		return true
	}
	got := r.Header.Get(SecretTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}
