package flow

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/region23/testdrive/internal/booking"
	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/bot/token"
	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/pkg/errors"
	"github.com/region23/testdrive/pkg/logger"
	"github.com/region23/testdrive/pkg/metrics"
)

// DefaultScheduleDays количество дней в выборе даты
const DefaultScheduleDays = 7

// Allocator операции со слотами, которые нужны диалогу
type Allocator interface {
	Now() time.Time
	FreeSlots(ctx context.Context, carID int64, day time.Time) ([]time.Time, error)
	CreateBooking(ctx context.Context, user *models.User, carID int64, slot time.Time) (*models.Booking, error)
	CancelByUser(ctx context.Context, user *models.User, bookingID int64) error
	ListActive(ctx context.Context, user *models.User) ([]*models.BookingView, error)
}

// CarReader чтение машин
type CarReader interface {
	GetCar(ctx context.Context, id int64) (*models.Car, error)
	ListCars(ctx context.Context) ([]*models.Car, error)
}

// Reminders планировщик напоминаний о подтвержденных бронированиях
type Reminders interface {
	Schedule(ctx context.Context, reminder *models.Reminder) error
	Cancel(ctx context.Context, bookingID int64) error
}

// Machine переводит токен в набор экранов. Состояние диалога целиком
// лежит в токене, сама машина ничего между вызовами не помнит.
type Machine struct {
	allocator Allocator
	cars      CarReader
	days      int
	reminders Reminders
	logger    *logger.Logger
}

var _ Allocator = (*booking.Allocator)(nil)

// NewMachine создает машину состояний диалога
func NewMachine(allocator Allocator, cars CarReader, scheduleDays int, log *logger.Logger) *Machine {
	if scheduleDays <= 0 {
		scheduleDays = DefaultScheduleDays
	}
	return &Machine{
		allocator: allocator,
		cars:      cars,
		days:      scheduleDays,
		logger:    log,
	}
}

// WithReminders подключает напоминания к бронированию и отмене
func (m *Machine) WithReminders(r Reminders) *Machine {
	m.reminders = r
	return m
}

// Handle разбирает callback-данные и выполняет переход.
// Неразборчивый токен дает главное меню; испорченный TIME возвращает к выбору дня.
func (m *Machine) Handle(ctx context.Context, user *models.User, data string) ([]screen.Screen, error) {
	tok, err := token.Parse(data)
	if err == nil {
		return m.Next(ctx, user, tok)
	}

	m.logger.Warn("Unparseable callback data",
		logger.String("data", data),
		logger.Error(err),
	)

	var pe *token.ParseError
	if stderrors.As(err, &pe) && pe.Verb == token.VerbTime && pe.CarID > 0 {
		return one(screen.DayPickerWithText(screen.BadTimeText, pe.CarID, m.dayRange())), nil
	}
	return one(screen.Menu(screen.MenuPrompt)), nil
}

// Next переход по токену. Первый экран заменяет нажатое сообщение,
// остальные отправляются новыми сообщениями. Ошибки предметной области
// превращаются в экраны; наружу выходят только неожиданные ошибки.
func (m *Machine) Next(ctx context.Context, user *models.User, tok token.Token) ([]screen.Screen, error) {
	start := time.Now()
	defer func() {
		metrics.TransitionDuration.WithLabelValues(string(tok.Verb())).Observe(time.Since(start).Seconds())
	}()

	switch t := tok.(type) {
	case token.Start:
		return one(screen.Menu(screen.MenuPrompt)), nil
	case token.Cars:
		return m.carList(ctx, "")
	case token.Car:
		return m.pickDay(ctx, t.CarID)
	case token.Day:
		return m.pickSlot(ctx, t.CarID, t.Date, "")
	case token.Time:
		return m.confirm(ctx, t.CarID, t.Slot)
	case token.Confirm:
		return m.book(ctx, user, t.CarID, t.Slot)
	case token.My:
		return m.bookings(ctx, user)
	case token.CancelBook:
		return m.cancelBooking(ctx, user, t.BookingID)
	case token.CancelFlow:
		return []screen.Screen{screen.FlowCanceled(), screen.Menu(screen.NextPrompt)}, nil
	case token.Back:
		return m.back(ctx, t)
	}

	return nil, fmt.Errorf("unhandled token %T", tok)
}

func (m *Machine) back(ctx context.Context, t token.Back) ([]screen.Screen, error) {
	switch t.Target {
	case token.BackToStart:
		return one(screen.Menu(screen.MenuPrompt)), nil
	case token.BackToCars:
		return m.carList(ctx, "")
	case token.BackToDay:
		return one(screen.DayPickerAgain(t.CarID, m.dayRange())), nil
	case token.BackToTime:
		return m.pickSlot(ctx, t.CarID, t.Date, "")
	}
	return nil, fmt.Errorf("unhandled back target %q", t.Target)
}

func (m *Machine) carList(ctx context.Context, text string) ([]screen.Screen, error) {
	cars, err := m.cars.ListCars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	if text == "" {
		return one(screen.CarList(cars)), nil
	}
	return one(screen.CarListWithText(text, cars)), nil
}

func (m *Machine) pickDay(ctx context.Context, carID int64) ([]screen.Screen, error) {
	car, err := m.cars.GetCar(ctx, carID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return m.carList(ctx, screen.CarGoneText)
		}
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return one(screen.DayPicker(car, m.dayRange())), nil
}

func (m *Machine) pickSlot(ctx context.Context, carID int64, day time.Time, prefix string) ([]screen.Screen, error) {
	slots, err := m.allocator.FreeSlots(ctx, carID, day)
	if err != nil {
		return nil, err
	}
	return one(screen.SlotPicker(carID, day, slots, prefix)), nil
}

func (m *Machine) confirm(ctx context.Context, carID int64, slot time.Time) ([]screen.Screen, error) {
	car, err := m.cars.GetCar(ctx, carID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return m.carList(ctx, screen.CarGoneText)
		}
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return one(screen.Confirm(car, slot)), nil
}

// book создает бронирование и при ошибке откатывается к ближайшему осмысленному экрану
func (m *Machine) book(ctx context.Context, user *models.User, carID int64, slot time.Time) ([]screen.Screen, error) {
	car, err := m.cars.GetCar(ctx, carID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return m.carList(ctx, screen.CarGoneText)
		}
		return nil, fmt.Errorf("failed to get car: %w", err)
	}

	created, err := m.allocator.CreateBooking(ctx, user, carID, slot)
	if err != nil {
		day := screen.Midnight(slot)

		switch errors.KindOf(err) {
		case errors.KindBadRequest:
			botErr, _ := errors.GetBotError(err)
			return m.pickSlot(ctx, carID, day, "❌ "+botErr.Message+"\nPlease choose another time:")
		case errors.KindConflict:
			return m.pickSlot(ctx, carID, day, screen.SlotTakenText)
		case errors.KindNotFound:
			return m.carList(ctx, screen.CarGoneText)
		}
		return nil, err
	}

	if m.reminders != nil {
		reminder := &models.Reminder{
			BookingID:  created.ID,
			TelegramID: user.TelegramID,
			CarModel:   car.Model,
			SlotStart:  created.SlotStart,
		}
		if err := m.reminders.Schedule(ctx, reminder); err != nil {
			m.logger.Warn("Failed to schedule reminder", logger.Int64("booking_id", created.ID), logger.Error(err))
		}
	}

	return []screen.Screen{
		screen.Booked(car, created.SlotStart),
		screen.Menu(screen.NextPrompt),
	}, nil
}

func (m *Machine) bookings(ctx context.Context, user *models.User) ([]screen.Screen, error) {
	list, err := m.allocator.ListActive(ctx, user)
	if err != nil {
		return nil, err
	}
	return one(screen.Bookings(list)), nil
}

func (m *Machine) cancelBooking(ctx context.Context, user *models.User, bookingID int64) ([]screen.Screen, error) {
	if err := m.allocator.CancelByUser(ctx, user, bookingID); err != nil {
		if errors.KindOf(err) != errors.KindNotFound {
			return nil, err
		}
		m.logger.Debug("Cancel requested for missing booking",
			logger.Int64("booking_id", bookingID),
			logger.Int64("user_id", user.ID),
		)
	} else if m.reminders != nil {
		_ = m.reminders.Cancel(ctx, bookingID)
	}
	return m.bookings(ctx, user)
}

func (m *Machine) dayRange() []time.Time {
	return screen.Days(m.allocator.Now(), m.days)
}

func one(s screen.Screen) []screen.Screen {
	return []screen.Screen{s}
}
