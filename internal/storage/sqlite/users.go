package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/pkg/metrics"
)

// UpsertUser создает пользователя при первом обращении или обновляет имя и username,
// если они изменились. updated_at меняется только при реальном изменении.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, telegramID int64, name, username string) (*models.User, error) {
	now := time.Now().UTC().Unix()

	query, args, err := builder.Insert("users").
		Columns("telegram_id", "name", "username", "created_at", "updated_at").
		Values(telegramID, name, username, now, now).
		Suffix(`ON CONFLICT(telegram_id) DO UPDATE SET
			name = excluded.name,
			username = excluded.username,
			updated_at = CASE
				WHEN users.name <> excluded.name OR users.username <> excluded.username
				THEN excluded.updated_at ELSE users.updated_at END
			RETURNING id, telegram_id, name, username, created_at, updated_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user upsert: %w", err)
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	metrics.RecordDatabaseOperation("upsert", "users", err)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

// GetUserByTelegramID получает пользователя по Telegram ID
func (s *SQLiteStorage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query, args, err := builder.Select("id", "telegram_id", "name", "username", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"telegram_id": telegramID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var createdAt, updatedAt int64
	if err := row.Scan(&user.ID, &user.TelegramID, &user.Name, &user.Username, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return user, nil
}
