package models

import "time"

// BookingStatus статус бронирования
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCanceled  BookingStatus = "CANCELED"
)

// Car представляет автомобиль, доступный для тест-драйва
type Car struct {
	ID          int64  `json:"id" db:"id"`
	Model       string `json:"model" db:"model"`
	Description string `json:"description,omitempty" db:"description"`
}

// User представляет пользователя Telegram
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Name       string    `json:"name" db:"name"`
	Username   string    `json:"username,omitempty" db:"username"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Booking представляет бронирование часового слота
type Booking struct {
	ID        int64         `json:"id" db:"id"`
	UserID    int64         `json:"user_id" db:"user_id"`
	CarID     int64         `json:"car_id" db:"car_id"`
	SlotStart time.Time     `json:"slot_start" db:"slot_start"`
	Status    BookingStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// IsActive проверяет, подтверждено ли бронирование
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed
}

// BookingView бронирование с названием машины для списка «Мои записи»
type BookingView struct {
	Booking
	CarModel string `json:"car_model"`
}

// AdminBooking бронирование с данными пользователя и машины для admin API
type AdminBooking struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"user_id"`
	TelegramID   int64         `json:"telegram_id"`
	UserName     string        `json:"user_name"`
	UserUsername string        `json:"username,omitempty"`
	CarID        int64         `json:"car_id"`
	CarModel     string        `json:"car_model"`
	SlotStart    time.Time     `json:"slot_start"`
	Status       BookingStatus `json:"status"`
}

// Reminder данные для напоминания о подтвержденном тест-драйве
type Reminder struct {
	BookingID  int64     `json:"booking_id"`
	TelegramID int64     `json:"telegram_id"`
	CarModel   string    `json:"car_model"`
	SlotStart  time.Time `json:"slot_start"`
}
