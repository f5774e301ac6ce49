package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram  TelegramConfig  `toml:"telegram"`
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Admin     AdminConfig     `toml:"admin"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Token       string `toml:"token"`
	Username    string `toml:"username"`
	Mode        string `toml:"mode"`
	WebhookURL  string `toml:"webhook_url"`
	SecretToken string `toml:"secret_token"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port            string        `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path         string `toml:"path"`
	BusyTimeout  int    `toml:"busy_timeout_ms"`
	SeedDemoCars bool   `toml:"seed_demo_cars"`
}

// ScheduleConfig содержит рабочее окно записи (в UTC, с шагом в час)
type ScheduleConfig struct {
	WorkStart    string `toml:"work_start"`
	WorkEnd      string `toml:"work_end"`
	ScheduleDays int    `toml:"schedule_days"`

	// ReminderBefore за сколько до слота напомнить; 0 отключает напоминания
	ReminderBefore time.Duration `toml:"reminder_before"`
}

// AdminConfig содержит настройки административного API
type AdminConfig struct {
	Token string `toml:"token"`
}

// RateLimitConfig содержит лимиты входящих запросов
type RateLimitConfig struct {
	HTTPPerMinute   int `toml:"http_per_minute"`
	ChatPerMinute   int `toml:"chat_per_minute"`
	GlobalPerSecond int `toml:"global_per_second"`
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level string `toml:"level"`
}

// Defaults возвращает конфигурацию по умолчанию
func Defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Mode: ModeWebhook,
		},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "testdrive.db",
			BusyTimeout: 5000,
		},
		Schedule: ScheduleConfig{
			WorkStart:    "09:00",
			WorkEnd:      "18:00",
			ScheduleDays:   7,
			ReminderBefore: time.Hour,
		},
		RateLimit: RateLimitConfig{
			HTTPPerMinute:   100,
			ChatPerMinute:   30,
			GlobalPerSecond: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load загружает конфигурацию: значения по умолчанию, затем TOML файл
// из CONFIG_FILE (если задан), затем .env и переменные окружения.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// .env не обязателен
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)
	c.Telegram.Username = getEnv("TELEGRAM_BOT_USERNAME", c.Telegram.Username)
	c.Telegram.Mode = strings.ToLower(getEnv("TELEGRAM_MODE", c.Telegram.Mode))
	c.Telegram.WebhookURL = getEnv("WEBHOOK_URL", c.Telegram.WebhookURL)
	c.Telegram.SecretToken = getEnv("TELEGRAM_SECRET_TOKEN", c.Telegram.SecretToken)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Database.Path = getEnv("DB_FILE", c.Database.Path)
	c.Database.BusyTimeout = getEnvAsInt("DB_BUSY_TIMEOUT_MS", c.Database.BusyTimeout)
	c.Database.SeedDemoCars = getEnvAsBool("SEED_DEMO_CARS", c.Database.SeedDemoCars)

	c.Schedule.WorkStart = getEnv("WORK_START", c.Schedule.WorkStart)
	c.Schedule.WorkEnd = getEnv("WORK_END", c.Schedule.WorkEnd)
	c.Schedule.ScheduleDays = getEnvAsInt("SCHEDULE_DAYS", c.Schedule.ScheduleDays)
	c.Schedule.ReminderBefore = getEnvAsDuration("REMINDER_BEFORE", c.Schedule.ReminderBefore)

	c.Admin.Token = getEnv("ADMIN_TOKEN", c.Admin.Token)

	c.RateLimit.HTTPPerMinute = getEnvAsInt("RATE_LIMIT_HTTP_PER_MINUTE", c.RateLimit.HTTPPerMinute)
	c.RateLimit.ChatPerMinute = getEnvAsInt("RATE_LIMIT_CHAT_PER_MINUTE", c.RateLimit.ChatPerMinute)
	c.RateLimit.GlobalPerSecond = getEnvAsInt("RATE_LIMIT_GLOBAL_PER_SECOND", c.RateLimit.GlobalPerSecond)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	switch c.Telegram.Mode {
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required in webhook mode")
		}
	case ModePolling:
	default:
		return fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", ModeWebhook, ModePolling, c.Telegram.Mode)
	}

	start, err := parseHour(c.Schedule.WorkStart)
	if err != nil {
		return fmt.Errorf("invalid WORK_START: %w", err)
	}
	end, err := parseHour(c.Schedule.WorkEnd)
	if err != nil {
		return fmt.Errorf("invalid WORK_END: %w", err)
	}
	if start >= end {
		return fmt.Errorf("WORK_START must be before WORK_END")
	}

	if c.Schedule.ScheduleDays <= 0 {
		return fmt.Errorf("SCHEDULE_DAYS must be positive")
	}
	if c.Schedule.ReminderBefore < 0 {
		return fmt.Errorf("REMINDER_BEFORE must not be negative")
	}
	if c.RateLimit.HTTPPerMinute <= 0 || c.RateLimit.ChatPerMinute <= 0 || c.RateLimit.GlobalPerSecond <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	return nil
}

// Hours возвращает рабочее окно в часах [start, end)
func (s ScheduleConfig) Hours() (start, end int) {
	start, _ = parseHour(s.WorkStart)
	end, _ = parseHour(s.WorkEnd)
	return start, end
}

// parseHour разбирает время HH:MM, допускает только целые часы; "24:00" означает конец суток
func parseHour(v string) (int, error) {
	if v == "24:00" {
		return 24, nil
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM: %w", err)
	}
	if t.Minute() != 0 {
		return 0, fmt.Errorf("%s is not on an hour boundary", v)
	}
	return t.Hour(), nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsBool получает переменную окружения как bool
func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
