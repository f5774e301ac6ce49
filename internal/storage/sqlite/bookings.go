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

// Слот хранится как unix-время в секундах (UTC), чтобы уникальный индекс
// сравнивал моменты, а не строковые представления.

// CountConfirmed возвращает количество подтвержденных бронирований машины на слот
func (s *SQLiteStorage) CountConfirmed(ctx context.Context, carID int64, slot time.Time) (int, error) {
	query, args, err := builder.Select("COUNT(*)").
		From("bookings").
		Where(sq.Eq{
			"car_id":     carID,
			"slot_start": slot.UTC().Unix(),
			"status":     string(models.StatusConfirmed),
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	return count, nil
}

// ConfirmedSlots возвращает занятые слоты машины в полуинтервале [from, to)
func (s *SQLiteStorage) ConfirmedSlots(ctx context.Context, carID int64, from, to time.Time) ([]time.Time, error) {
	query, args, err := builder.Select("slot_start").
		From("bookings").
		Where(sq.Eq{"car_id": carID, "status": string(models.StatusConfirmed)}).
		Where(sq.GtOrEq{"slot_start": from.UTC().Unix()}).
		Where(sq.Lt{"slot_start": to.UTC().Unix()}).
		OrderBy("slot_start ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slots query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed slots: %w", err)
	}
	defer rows.Close()

	var slots []time.Time
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, time.Unix(ts, 0).UTC())
	}

	return slots, rows.Err()
}

// CreateBooking сохраняет бронирование; при занятом слоте возвращает storage.ErrDuplicate
func (s *SQLiteStorage) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}

	query, args, err := builder.Insert("bookings").
		Columns("user_id", "car_id", "slot_start", "status", "created_at").
		Values(
			booking.UserID,
			booking.CarID,
			booking.SlotStart.UTC().Unix(),
			string(booking.Status),
			booking.CreatedAt.UTC().Unix(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("insert", "bookings", err)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: booking references missing user or car", storage.ErrNotFound)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read booking id: %w", err)
	}
	booking.ID = id

	return nil
}

// GetBookingForUser получает бронирование, принадлежащее пользователю
func (s *SQLiteStorage) GetBookingForUser(ctx context.Context, id, userID int64) (*models.Booking, error) {
	query, args, err := builder.Select("id", "user_id", "car_id", "slot_start", "status", "created_at").
		From("bookings").
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	b := &models.Booking{}
	var slot, created int64
	var status string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.UserID, &b.CarID, &slot, &status, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	b.SlotStart = time.Unix(slot, 0).UTC()
	b.CreatedAt = time.Unix(created, 0).UTC()
	b.Status = models.BookingStatus(status)

	return b, nil
}

// UpdateBookingStatus меняет статус бронирования
func (s *SQLiteStorage) UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error {
	query, args, err := builder.Update("bookings").
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build status update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("update", "bookings", err)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	return requireAffected(res)
}

// ListConfirmedByUser возвращает активные бронирования пользователя по возрастанию времени
func (s *SQLiteStorage) ListConfirmedByUser(ctx context.Context, userID int64) ([]*models.BookingView, error) {
	query, args, err := builder.Select(
		"b.id", "b.user_id", "b.car_id", "b.slot_start", "b.status", "b.created_at", "c.model",
	).
		From("bookings b").
		Join("cars c ON c.id = b.car_id").
		Where(sq.Eq{"b.user_id": userID, "b.status": string(models.StatusConfirmed)}).
		OrderBy("b.slot_start ASC", "b.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user bookings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	defer rows.Close()

	var list []*models.BookingView
	for rows.Next() {
		v := &models.BookingView{}
		var slot, created int64
		var status string
		if err := rows.Scan(&v.ID, &v.UserID, &v.CarID, &slot, &status, &created, &v.CarModel); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		v.SlotStart = time.Unix(slot, 0).UTC()
		v.CreatedAt = time.Unix(created, 0).UTC()
		v.Status = models.BookingStatus(status)
		list = append(list, v)
	}

	return list, rows.Err()
}

// ListBookingsForAdmin возвращает все бронирования, новые слоты первыми
func (s *SQLiteStorage) ListBookingsForAdmin(ctx context.Context) ([]*models.AdminBooking, error) {
	query, args, err := builder.Select(
		"b.id", "u.id", "u.telegram_id", "u.name", "u.username",
		"c.id", "c.model", "b.slot_start", "b.status",
	).
		From("bookings b").
		Join("users u ON u.id = b.user_id").
		Join("cars c ON c.id = b.car_id").
		OrderBy("b.slot_start DESC", "b.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build admin bookings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var list []*models.AdminBooking
	for rows.Next() {
		a := &models.AdminBooking{}
		var slot int64
		var status string
		if err := rows.Scan(&a.ID, &a.UserID, &a.TelegramID, &a.UserName, &a.UserUsername,
			&a.CarID, &a.CarModel, &slot, &status); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		a.SlotStart = time.Unix(slot, 0).UTC()
		a.Status = models.BookingStatus(status)
		list = append(list, a)
	}

	return list, rows.Err()
}

// DeleteBooking удаляет бронирование без смены статуса
func (s *SQLiteStorage) DeleteBooking(ctx context.Context, id int64) error {
	query, args, err := builder.Delete("bookings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	metrics.RecordDatabaseOperation("delete", "bookings", err)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}

	return requireAffected(res)
}
