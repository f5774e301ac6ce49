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
)

func reminderQuery() sq.SelectBuilder {
	return builder.Select("b.id", "u.telegram_id", "c.model", "b.slot_start").
		From("bookings b").
		Join("users u ON u.id = b.user_id").
		Join("cars c ON c.id = b.car_id").
		Where(sq.Eq{"b.status": string(models.StatusConfirmed)})
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	r := &models.Reminder{}
	var slot int64
	if err := row.Scan(&r.BookingID, &r.TelegramID, &r.CarModel, &slot); err != nil {
		return nil, err
	}
	r.SlotStart = time.Unix(slot, 0).UTC()
	return r, nil
}

// GetReminder возвращает напоминание по бронированию; отмененное или удаленное дает ErrNotFound
func (s *SQLiteStorage) GetReminder(ctx context.Context, bookingID int64) (*models.Reminder, error) {
	query, args, err := reminderQuery().
		Where(sq.Eq{"b.id": bookingID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reminder query: %w", err)
	}

	r, err := scanReminder(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// ListUpcomingReminders возвращает подтвержденные бронирования со слотом позже from
func (s *SQLiteStorage) ListUpcomingReminders(ctx context.Context, from time.Time) ([]*models.Reminder, error) {
	query, args, err := reminderQuery().
		Where(sq.Gt{"b.slot_start": from.UTC().Unix()}).
		OrderBy("b.slot_start ASC", "b.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build reminders query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var list []*models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		list = append(list, r)
	}

	return list, rows.Err()
}
