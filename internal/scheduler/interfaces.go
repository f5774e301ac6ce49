// Package scheduler напоминания о предстоящих тест-драйвах.
package scheduler

import (
	"context"
	"time"

	"github.com/region23/testdrive/internal/storage/models"
)

// ReminderScheduler определяет интерфейс для планирования напоминаний
type ReminderScheduler interface {
	// Schedule планирует напоминание за lead до начала слота
	Schedule(ctx context.Context, reminder *models.Reminder) error

	// Cancel отменяет запланированное напоминание
	Cancel(ctx context.Context, bookingID int64) error

	// ReschedulePending заново планирует напоминания всех будущих бронирований
	ReschedulePending(ctx context.Context) error

	// Stop останавливает планировщик
	Stop() error
}

// ReminderSender доставляет напоминание пользователю
type ReminderSender interface {
	SendReminder(ctx context.Context, reminder *models.Reminder) error
}

// ReminderSource читает актуальные напоминания из хранилища
type ReminderSource interface {
	GetReminder(ctx context.Context, bookingID int64) (*models.Reminder, error)
	ListUpcomingReminders(ctx context.Context, from time.Time) ([]*models.Reminder, error)
}
