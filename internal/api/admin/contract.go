package admin

import (
	"context"

	"github.com/region23/testdrive/internal/storage/models"
)

type CarStore interface {
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	ListCars(ctx context.Context) ([]*models.Car, error)
	CreateCar(ctx context.Context, car *models.Car) error
	UpdateCar(ctx context.Context, car *models.Car) error
	DeleteCar(ctx context.Context, id int64) error
}

type BookingStore interface {
	ListBookingsForAdmin(ctx context.Context) ([]*models.AdminBooking, error)
	DeleteBooking(ctx context.Context, id int64) error
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
