package storage

import (
	"context"
	"errors"
	"time"

	"github.com/region23/testdrive/internal/storage/models"
)

var (
	// ErrNotFound возвращается, когда запись не найдена
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicate возвращается при нарушении ограничения уникальности
	ErrDuplicate = errors.New("storage: unique constraint violated")

	// ErrReferenced возвращается, когда удаляемая запись используется другими (foreign key)
	ErrReferenced = errors.New("storage: record is referenced")
)

// CarRepository определяет интерфейс для работы с автомобилями
type CarRepository interface {
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	ListCars(ctx context.Context) ([]*models.Car, error)
	CreateCar(ctx context.Context, car *models.Car) error
	UpdateCar(ctx context.Context, car *models.Car) error
	DeleteCar(ctx context.Context, id int64) error
}

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	UpsertUser(ctx context.Context, telegramID int64, name, username string) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// BookingRepository определяет интерфейс для работы с бронированиями
type BookingRepository interface {
	CountConfirmed(ctx context.Context, carID int64, slot time.Time) (int, error)
	ConfirmedSlots(ctx context.Context, carID int64, from, to time.Time) ([]time.Time, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingForUser(ctx context.Context, id, userID int64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status models.BookingStatus) error
	ListConfirmedByUser(ctx context.Context, userID int64) ([]*models.BookingView, error)
	ListBookingsForAdmin(ctx context.Context) ([]*models.AdminBooking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

// ReminderRepository выборки для напоминаний о тест-драйвах
type ReminderRepository interface {
	GetReminder(ctx context.Context, bookingID int64) (*models.Reminder, error)
	ListUpcomingReminders(ctx context.Context, from time.Time) ([]*models.Reminder, error)
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	CarRepository
	UserRepository
	BookingRepository
	ReminderRepository
	Close() error
	Ping(ctx context.Context) error
}
