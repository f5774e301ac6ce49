// Package testutil общие помощники для тестов пакетов бота.
package testutil

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/region23/testdrive/internal/storage/sqlite"
	"github.com/region23/testdrive/pkg/logger"
)

// SetupTestDB создает in-memory SQLite базу данных для тестов
func SetupTestDB(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()

	storage, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

// SetupTestLogger создает тихий логгер для тестов
func SetupTestLogger() *logger.Logger {
	return logger.NewWithWriter(logger.LevelError, io.Discard)
}

// TestContext создает контекст для тестов
func TestContext() context.Context {
	return context.Background()
}

// FakeTelegram записывает обращения к Bot API вместо сетевых вызовов
type FakeTelegram struct {
	mu sync.Mutex

	Sent     []*bot.SendMessageParams
	Edited   []*bot.EditMessageTextParams
	Answered []string
	Commands []models.BotCommand

	// EditErr возвращается на каждое редактирование, если задан
	EditErr error
	nextID  int
}

func (f *FakeTelegram) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, params)
	f.nextID++
	return &models.Message{ID: f.nextID}, nil
}

func (f *FakeTelegram) EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EditErr != nil {
		return nil, f.EditErr
	}
	f.Edited = append(f.Edited, params)
	return &models.Message{ID: params.MessageID}, nil
}

func (f *FakeTelegram) AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answered = append(f.Answered, params.CallbackQueryID)
	return true, nil
}

func (f *FakeTelegram) SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = params.Commands
	return true, nil
}

// Texts возвращает тексты всех отправленных и отредактированных сообщений по порядку типа
func (f *FakeTelegram) Texts() (sent, edited []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Sent {
		sent = append(sent, p.Text)
	}
	for _, p := range f.Edited {
		edited = append(edited, p.Text)
	}
	return sent, edited
}

// Reset очищает записанные вызовы
func (f *FakeTelegram) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent, f.Edited, f.Answered = nil, nil, nil
}
