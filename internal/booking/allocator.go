package booking

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/internal/validation"
	"github.com/region23/testdrive/pkg/errors"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// Store данные, которые нужны аллокатору
type Store interface {
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	CountConfirmed(ctx context.Context, carID int64, slot time.Time) (int, error)
	ConfirmedSlots(ctx context.Context, carID int64, from, to time.Time) ([]time.Time, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingForUser(ctx context.Context, id, userID int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
	ListConfirmedByUser(ctx context.Context, userID int64) ([]*models.BookingView, error)
}

// Allocator выдает и отменяет часовые слоты машин
type Allocator struct {
	store  Store
	clock  TimeProvider
	window validation.Window
	logger *logger.Logger
}

// NewAllocator создает аллокатор слотов
func NewAllocator(store Store, clock TimeProvider, window validation.Window, log *logger.Logger) *Allocator {
	return &Allocator{
		store:  store,
		clock:  clock,
		window: window,
		logger: log,
	}
}

// Window возвращает рабочее окно
func (a *Allocator) Window() validation.Window {
	return a.window
}

// Now возвращает текущее время по часам аллокатора
func (a *Allocator) Now() time.Time {
	return a.clock.Now().UTC()
}

// FreeSlots возвращает свободные будущие начала часов в рабочем окне дня (UTC)
func (a *Allocator) FreeSlots(ctx context.Context, carID int64, day time.Time) ([]time.Time, error) {
	day = day.UTC()
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	from := midnight.Add(time.Duration(a.window.StartHour) * time.Hour)
	to := midnight.Add(time.Duration(a.window.EndHour) * time.Hour)

	taken, err := a.store.ConfirmedSlots(ctx, carID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed slots: %w", err)
	}
	busy := make(map[int64]struct{}, len(taken))
	for _, t := range taken {
		busy[t.Unix()] = struct{}{}
	}

	now := a.Now()
	slots := make([]time.Time, 0, a.window.EndHour-a.window.StartHour)
	for slot := from; slot.Before(to); slot = slot.Add(time.Hour) {
		if !slot.After(now) {
			continue
		}
		if _, ok := busy[slot.Unix()]; ok {
			continue
		}
		slots = append(slots, slot)
	}

	metrics.FreeSlotsServed.Observe(float64(len(slots)))
	return slots, nil
}

// CreateBooking подтверждает слот для пользователя.
// Предварительная проверка дает быстрый Conflict; единственной гарантией
// уникальности остается индекс в хранилище, его нарушение тоже превращается в Conflict.
func (a *Allocator) CreateBooking(ctx context.Context, user *models.User, carID int64, slot time.Time) (*models.Booking, error) {
	car, err := a.store.GetCar(ctx, carID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.ErrCarNotFound.WithContext(map[string]interface{}{"car_id": carID})
		}
		return nil, fmt.Errorf("failed to load car: %w", err)
	}

	slot = slot.UTC()
	if err := validation.ValidateSlot(a.Now(), slot, a.window); err != nil {
		if botErr, ok := errors.GetBotError(err); ok {
			metrics.RecordBookingRejection(botErr.Code)
		}
		return nil, err
	}

	taken, err := a.store.CountConfirmed(ctx, car.ID, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to check slot: %w", err)
	}
	if taken > 0 {
		metrics.RecordBookingConflict("precheck")
		return nil, errors.ErrSlotTaken.WithContext(slotContext(car.ID, slot))
	}

	booking := &models.Booking{
		UserID:    user.ID,
		CarID:     car.ID,
		SlotStart: slot,
		Status:    models.StatusConfirmed,
		CreatedAt: a.Now(),
	}
	if err := a.store.CreateBooking(ctx, booking); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			metrics.RecordBookingConflict("constraint")
			a.logger.Info("Slot lost to concurrent booking",
				logger.Int64("car_id", car.ID),
				logger.String("slot", slot.Format(time.RFC3339)),
			)
			return nil, errors.ErrSlotTaken.WithError(err).WithContext(slotContext(car.ID, slot))
		}
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	metrics.RecordBookingCreated()
	a.logger.Info("Booking confirmed",
		logger.Int64("booking_id", booking.ID),
		logger.Int64("user_id", user.ID),
		logger.Int64("car_id", car.ID),
		logger.String("slot", slot.Format(time.RFC3339)),
	)

	return booking, nil
}

// CancelByUser отменяет бронирование пользователя; повторная отмена ничего не делает
func (a *Allocator) CancelByUser(ctx context.Context, user *models.User, bookingID int64) error {
	booking, err := a.store.GetBookingForUser(ctx, bookingID, user.ID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.ErrBookingNotFound.WithContext(map[string]interface{}{
				"booking_id": bookingID,
				"user_id":    user.ID,
			})
		}
		return fmt.Errorf("failed to load booking: %w", err)
	}

	if booking.Status == models.StatusCanceled {
		return nil
	}

	if err := a.store.UpdateBookingStatus(ctx, booking.ID, models.StatusCanceled); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			// удалено администратором между чтением и записью
			return errors.ErrBookingNotFound.WithError(err)
		}
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	metrics.RecordBookingCanceled()
	a.logger.Info("Booking canceled",
		logger.Int64("booking_id", booking.ID),
		logger.Int64("user_id", user.ID),
	)

	return nil
}

// ListActive возвращает подтвержденные бронирования пользователя по возрастанию времени
func (a *Allocator) ListActive(ctx context.Context, user *models.User) ([]*models.BookingView, error) {
	list, err := a.store.ListConfirmedByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return list, nil
}

func slotContext(carID int64, slot time.Time) map[string]interface{} {
	return map[string]interface{}{
		"car_id": carID,
		"slot":   slot.Format(time.RFC3339),
	}
}
