package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/booking"
	"github.com/region23/testdrive/internal/bot"
	"github.com/region23/testdrive/internal/bot/flow"
	"github.com/region23/testdrive/internal/bot/service"
	"github.com/region23/testdrive/internal/config"
	"github.com/region23/testdrive/internal/middleware"
	"github.com/region23/testdrive/internal/scheduler/memory"
	"github.com/region23/testdrive/internal/server"
	"github.com/region23/testdrive/internal/storage/sqlite"
	"github.com/region23/testdrive/internal/validation"
	"github.com/region23/testdrive/pkg/logger"
)

// version подставляется при сборке через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	appLogger := logger.New(level)
	appLogger.Info("Configuration loaded",
		logger.String("mode", cfg.Telegram.Mode),
		logger.String("version", version),
	)

	store, err := sqlite.NewWithOptions(cfg.Database.Path, sqlite.Options{
		BusyTimeoutMs: cfg.Database.BusyTimeout,
		SeedDemoCars:  cfg.Database.SeedDemoCars,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize storage", logger.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Error closing storage", logger.Error(err))
		}
	}()
	appLogger.Info("Storage initialized", logger.String("path", cfg.Database.Path))

	startHour, endHour := cfg.Schedule.Hours()
	window := validation.Window{StartHour: startHour, EndHour: endHour}

	allocator := booking.NewAllocator(store, booking.RealTimeProvider{}, window, appLogger)
	machine := flow.NewMachine(allocator, store, cfg.Schedule.ScheduleDays, appLogger)

	chatLimiter := middleware.NewChatRateLimiter(cfg.RateLimit.ChatPerMinute, cfg.RateLimit.GlobalPerSecond, appLogger)
	defer chatLimiter.Close()

	// диспетчеру нужен gateway поверх *tgbot.Bot, а боту нужен обработчик
	var dispatcher *bot.Dispatcher
	telegramBot, err := tgbot.New(cfg.Telegram.Token,
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			dispatcher.HandleUpdate(ctx, b, update)
		}),
	)
	if err != nil {
		appLogger.Fatal("Failed to create Telegram bot", logger.Error(err))
	}

	gateway := service.NewService(telegramBot, appLogger)
	dispatcher = bot.NewDispatcher(bot.Deps{
		Gateway: gateway,
		Users:   store,
		Flow:    machine,
		Window:  window,
		Limiter: chatLimiter,
		Logger:  appLogger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.ReminderBefore > 0 {
		reminders := memory.NewMemoryScheduler(store, gateway, cfg.Schedule.ReminderBefore, appLogger)
		defer reminders.Stop()
		machine.WithReminders(reminders)

		if err := reminders.ReschedulePending(ctx); err != nil {
			appLogger.Error("Failed to reschedule reminders", logger.Error(err))
		}
	}

	if err := gateway.RegisterCommands(ctx); err != nil {
		appLogger.Warn("Failed to register bot commands", logger.Error(err))
	}

	var updates server.UpdateHandler
	var wg sync.WaitGroup

	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		if err := setupWebhook(ctx, telegramBot, cfg.Telegram); err != nil {
			appLogger.Fatal("Failed to setup webhook", logger.Error(err))
		}
		appLogger.Info("Webhook configured", logger.String("url", cfg.Telegram.WebhookURL))
		updates = dispatcher

	case config.ModePolling:
		if _, err := telegramBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
			appLogger.Warn("Failed to delete webhook before polling", logger.Error(err))
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			appLogger.Info("Starting long polling")
			telegramBot.Start(ctx)
			appLogger.Info("Long polling stopped")
		}()
	}

	srv := server.New(cfg, appLogger, store, updates, telegramBot, version)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLogger.Error("Server error", logger.Error(err))
		stop()
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
	appLogger.Info("Server stopped gracefully")
}

// setupWebhook регистрирует webhook с секретом, которым Telegram подписывает запросы
func setupWebhook(ctx context.Context, b *tgbot.Bot, cfg config.TelegramConfig) error {
	_, err := b.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:            cfg.WebhookURL,
		SecretToken:    cfg.SecretToken,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	return err
}
