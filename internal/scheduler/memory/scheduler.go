package memory

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/region23/testdrive/internal/scheduler"
	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

var ErrStopped = stderrors.New("scheduler is stopped")

var _ scheduler.ReminderScheduler = (*MemoryScheduler)(nil)

// MemoryScheduler держит таймеры напоминаний в памяти.
// После рестарта таймеры восстанавливаются через ReschedulePending.
type MemoryScheduler struct {
	timers   map[int64]pendingReminder
	seq      uint64
	mu       sync.Mutex
	source   scheduler.ReminderSource
	sender   scheduler.ReminderSender
	lead     time.Duration
	now      func() time.Time
	logger   *logger.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  bool
	stopOnce sync.Once
}

// pendingReminder таймер и номер постановки; сработавший таймер
// отправляет напоминание, только если его номер все еще актуален
type pendingReminder struct {
	timer *time.Timer
	gen   uint64
}

// NewMemoryScheduler создает планировщик, который напоминает за lead до слота
func NewMemoryScheduler(source scheduler.ReminderSource, sender scheduler.ReminderSender, lead time.Duration, log *logger.Logger) *MemoryScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &MemoryScheduler{
		timers: make(map[int64]pendingReminder),
		source: source,
		sender: sender,
		lead:   lead,
		now:    time.Now,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule планирует напоминание. Если момент напоминания прошел, а слот
// еще впереди, напоминание уходит сразу; прошедший слот пропускается.
func (s *MemoryScheduler) Schedule(ctx context.Context, reminder *models.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	s.stopLocked(reminder.BookingID)

	now := s.now()
	if !reminder.SlotStart.After(now) {
		return nil
	}

	id := reminder.BookingID
	delay := reminder.SlotStart.Add(-s.lead).Sub(now)
	if delay < 0 {
		delay = 0
	}

	s.seq++
	gen := s.seq
	s.timers[id] = pendingReminder{
		timer: time.AfterFunc(delay, func() { s.fire(id, gen) }),
		gen:   gen,
	}

	return nil
}

// Cancel отменяет запланированное напоминание
func (s *MemoryScheduler) Cancel(ctx context.Context, bookingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(bookingID)
	return nil
}

// ReschedulePending сбрасывает таймеры и планирует напоминания всех будущих бронирований
func (s *MemoryScheduler) ReschedulePending(ctx context.Context) error {
	reminders, err := s.source.ListUpcomingReminders(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to load upcoming reminders: %w", err)
	}

	s.mu.Lock()
	for id := range s.timers {
		s.stopLocked(id)
	}
	s.mu.Unlock()

	for _, r := range reminders {
		if err := s.Schedule(ctx, r); err != nil {
			return err
		}
	}

	s.logger.Info("Reminders rescheduled", logger.Int("count", len(reminders)))
	return nil
}

// Stop останавливает планировщик
func (s *MemoryScheduler) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.stopped = true
		for id := range s.timers {
			s.stopLocked(id)
		}
		s.cancel()
	})

	return nil
}

// ActiveTimers количество запланированных напоминаний
func (s *MemoryScheduler) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.timers)
}

func (s *MemoryScheduler) stopLocked(bookingID int64) {
	if p, ok := s.timers[bookingID]; ok {
		p.timer.Stop()
		delete(s.timers, bookingID)
	}
}

// fire перечитывает бронирование: отмененное или удаленное напоминание не отправляется
func (s *MemoryScheduler) fire(bookingID int64, gen uint64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if p, ok := s.timers[bookingID]; !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, bookingID)
	s.mu.Unlock()

	reminder, err := s.source.GetReminder(s.ctx, bookingID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("Reminder skipped, booking is no longer active", logger.Int64("booking_id", bookingID))
			return
		}
		s.logger.Error("Failed to load reminder", logger.Int64("booking_id", bookingID), logger.Error(err))
		metrics.RecordError("scheduler", "load")
		return
	}

	if err := s.sender.SendReminder(s.ctx, reminder); err != nil {
		s.logger.Error("Failed to send reminder",
			logger.Int64("booking_id", bookingID),
			logger.Int64("telegram_id", reminder.TelegramID),
			logger.Error(err),
		)
		metrics.RecordError("scheduler", "send")
		return
	}

	metrics.RecordUpdate("reminder", "sent")
}
