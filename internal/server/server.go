package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/region23/testdrive/internal/api/admin"
	"github.com/region23/testdrive/internal/config"
	"github.com/region23/testdrive/internal/middleware"
	"github.com/region23/testdrive/pkg/logger"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
	webhookPath = "/webhook"
)

// UpdateHandler обработчик апдейтов Telegram, обычно диспетчер бота
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update)
}

// Store хранилище, нужное серверу: admin API и проверка здоровья
type Store interface {
	admin.Store
	Pinger
}

// Server представляет HTTP сервер с middleware
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	logger      *logger.Logger
	rateLimiter *middleware.RateLimiter
	audit       *AuditLogger
	health      *HealthChecker
	store       Store
	updates     UpdateHandler
	telegramBot *tgbot.Bot
	version     string

	inflight sync.WaitGroup
}

// New создает новый HTTP сервер; updates может быть nil в режиме polling
func New(cfg *config.Config, log *logger.Logger, store Store, updates UpdateHandler, telegramBot *tgbot.Bot, version string) *Server {
	s := &Server{
		config:      cfg,
		logger:      log,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.HTTPPerMinute, time.Minute, log),
		audit:       NewAuditLogger(log),
		health:      NewHealthChecker(store, version),
		store:       store,
		updates:     updates,
		telegramBot: telegramBot,
		version:     version,
	}

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Router собирает маршруты. Webhook идет мимо лимита по IP, апдейты ограничивает диспетчер по чатам.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(securityHeadersMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.auditMiddleware)
	r.Use(middleware.PrometheusMiddleware)

	if s.updates != nil {
		r.HandleFunc(webhookPath, s.handleWebhook).Methods(http.MethodPost)
	}

	limited := r.NewRoute().Subrouter()
	limited.Use(middleware.HTTPRateLimitMiddleware(s.rateLimiter))

	limited.HandleFunc(healthPath, s.health.HealthHandler).Methods(http.MethodGet)
	limited.Handle(metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	admin.Register(limited, s.store, s.config.Admin.Token, s.logger.Printf())

	return r
}

// Start запускает сервер и блокируется до отмены ctx
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		logger.String("addr", s.httpServer.Addr),
		logger.String("version", s.version),
	)
	s.audit.LogSystemEvent("server_start", "info", map[string]interface{}{
		"addr": s.httpServer.Addr,
		"mode": s.config.Telegram.Mode,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	s.rateLimiter.Close()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", logger.Error(err))
		s.audit.LogSystemEvent("server_shutdown_error", "error", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	if err := s.drainUpdates(shutdownCtx); err != nil {
		s.logger.Warn("Shutdown timed out waiting for updates", logger.Error(err))
		return err
	}

	s.logger.Info("HTTP server shut down successfully")
	s.audit.LogSystemEvent("server_shutdown_complete", "info", nil)
	return nil
}
