// Package token описывает callback-данные кнопок бота.
//
// Формат: ASCII, поля через "|", первым идет глагол, например
// "TIME|7|2025-08-16T13:00Z". Вся информация, нужная для следующего экрана,
// лежит в самом токене, поэтому бот не хранит состояние диалога.
package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/region23/testdrive/internal/validation"
	"github.com/region23/testdrive/pkg/errors"
)

// MaxLength ограничение Telegram на callback_data в байтах
const MaxLength = 64

// InstantLayout формат момента слота, который пишет кодировщик
const InstantLayout = "2006-01-02T15:04Z"

const sep = "|"

// Verb первый элемент токена
type Verb string

const (
	VerbStart      Verb = "START"
	VerbCars       Verb = "CARS"
	VerbCar        Verb = "CAR"
	VerbDay        Verb = "DAY"
	VerbTime       Verb = "TIME"
	VerbConfirm    Verb = "CONFIRM"
	VerbMy         Verb = "MY"
	VerbCancelBook Verb = "CANCEL_BOOK"
	VerbCancelFlow Verb = "CANCEL_FLOW"
	VerbBack       Verb = "BACK"

	// синонимы, принимаются только при разборе; кодировщик их не пишет
	verbCancelAlias     Verb = "CANCEL"
	verbCancelBookAlias Verb = "CANCEL_BOOKING"
)

// BackTarget экран, на который ведет кнопка "назад"
type BackTarget string

const (
	BackToStart BackTarget = "START"
	BackToCars  BackTarget = "CARS"
	BackToDay   BackTarget = "DAY"
	BackToTime  BackTarget = "TIME"
)

// Token закрытое множество действий кнопок
type Token interface {
	Verb() Verb
	String() string
	isToken()
}

// Start главное меню
type Start struct{}

// Cars список машин
type Cars struct{}

// Car выбор дня для машины
type Car struct {
	CarID int64
}

// Day выбор часа на день (UTC)
type Day struct {
	CarID int64
	Date  time.Time
}

// Time экран подтверждения слота
type Time struct {
	CarID int64
	Slot  time.Time
}

// Confirm создание бронирования
type Confirm struct {
	CarID int64
	Slot  time.Time
}

// My активные бронирования пользователя
type My struct{}

// CancelBook отмена бронирования пользователем
type CancelBook struct {
	BookingID int64
}

// CancelFlow выход из сценария записи
type CancelFlow struct{}

// Back возврат к предыдущему экрану. CarID и Date заполнены только для
// целей, которым они нужны.
type Back struct {
	Target BackTarget
	CarID  int64
	Date   time.Time
}

func (Start) Verb() Verb      { return VerbStart }
func (Cars) Verb() Verb       { return VerbCars }
func (Car) Verb() Verb        { return VerbCar }
func (Day) Verb() Verb        { return VerbDay }
func (Time) Verb() Verb       { return VerbTime }
func (Confirm) Verb() Verb    { return VerbConfirm }
func (My) Verb() Verb         { return VerbMy }
func (CancelBook) Verb() Verb { return VerbCancelBook }
func (CancelFlow) Verb() Verb { return VerbCancelFlow }
func (Back) Verb() Verb       { return VerbBack }

func (Start) isToken()      {}
func (Cars) isToken()       {}
func (Car) isToken()        {}
func (Day) isToken()        {}
func (Time) isToken()       {}
func (Confirm) isToken()    {}
func (My) isToken()         {}
func (CancelBook) isToken() {}
func (CancelFlow) isToken() {}
func (Back) isToken()       {}

func (t Start) String() string      { return string(VerbStart) }
func (t Cars) String() string       { return string(VerbCars) }
func (t My) String() string         { return string(VerbMy) }
func (t CancelFlow) String() string { return string(VerbCancelFlow) }

func (t Car) String() string {
	return join(VerbCar, id(t.CarID))
}

func (t Day) String() string {
	return join(VerbDay, id(t.CarID), FormatDate(t.Date))
}

func (t Time) String() string {
	return join(VerbTime, id(t.CarID), FormatInstant(t.Slot))
}

func (t Confirm) String() string {
	return join(VerbConfirm, id(t.CarID), FormatInstant(t.Slot))
}

func (t CancelBook) String() string {
	return join(VerbCancelBook, id(t.BookingID))
}

func (t Back) String() string {
	switch t.Target {
	case BackToDay:
		return join(VerbBack, string(t.Target), id(t.CarID))
	case BackToTime:
		return join(VerbBack, string(t.Target), id(t.CarID), FormatDate(t.Date))
	default:
		return join(VerbBack, string(t.Target))
	}
}

// FormatInstant кодирует момент в UTC. Целые минуты пишутся коротко,
// момент с секундами сохраняется полностью, чтобы кнопка несла тот же слот.
func FormatInstant(t time.Time) string {
	t = t.UTC()
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(InstantLayout)
}

// FormatDate кодирует календарный день UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(validation.DateLayout)
}

// ParseError ошибка разбора токена. Verb и CarID заполнены, если их удалось
// прочитать до ошибки.
type ParseError struct {
	Data  string
	Verb  Verb
	CarID int64
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid token %q: %v", e.Data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// bare токены без аргументов
var bare = map[Verb]Token{
	VerbStart:       Start{},
	VerbCars:        Cars{},
	VerbMy:          My{},
	VerbCancelFlow:  CancelFlow{},
	verbCancelAlias: CancelFlow{},
}

// Parse разбирает callback-данные в токен
func Parse(data string) (Token, error) {
	if data == "" {
		return nil, parseErr(data, "", "empty token")
	}
	if len(data) > MaxLength {
		return nil, parseErr(data, "", "token exceeds %d bytes", MaxLength)
	}

	parts := strings.Split(data, sep)
	verb := Verb(parts[0])
	args := parts[1:]

	if tok, ok := bare[verb]; ok {
		if err := arity(data, tok.Verb(), args, 0); err != nil {
			return nil, err
		}
		return tok, nil
	}

	switch verb {
	case VerbCar:
		if err := arity(data, verb, args, 1); err != nil {
			return nil, err
		}
		carID, err := parseID(data, verb, args[0])
		if err != nil {
			return nil, err
		}
		return Car{CarID: carID}, nil
	case VerbDay:
		if err := arity(data, verb, args, 2); err != nil {
			return nil, err
		}
		carID, err := parseID(data, verb, args[0])
		if err != nil {
			return nil, err
		}
		date, err := parseDate(data, verb, carID, args[1])
		if err != nil {
			return nil, err
		}
		return Day{CarID: carID, Date: date}, nil
	case VerbTime:
		return parseTime(data, args)
	case VerbConfirm:
		if err := arity(data, verb, args, 2); err != nil {
			return nil, err
		}
		carID, err := parseID(data, verb, args[0])
		if err != nil {
			return nil, err
		}
		slot, err := parseInstant(data, verb, carID, args[1])
		if err != nil {
			return nil, err
		}
		return Confirm{CarID: carID, Slot: slot}, nil
	case VerbCancelBook, verbCancelBookAlias:
		if err := arity(data, VerbCancelBook, args, 1); err != nil {
			return nil, err
		}
		bookingID, err := parseID(data, VerbCancelBook, args[0])
		if err != nil {
			return nil, err
		}
		return CancelBook{BookingID: bookingID}, nil
	case VerbBack:
		return parseBack(data, args)
	}

	return nil, parseErr(data, "", "unknown verb %q", parts[0])
}

// parseTime принимает TIME|car|instant и устаревшую форму TIME|car|date|hour
func parseTime(data string, args []string) (Token, error) {
	if len(args) == 0 {
		return nil, parseErr(data, VerbTime, "missing car id")
	}
	carID, err := parseID(data, VerbTime, args[0])
	if err != nil {
		return nil, err
	}

	switch len(args) {
	case 2:
		slot, err := parseInstant(data, VerbTime, carID, args[1])
		if err != nil {
			return nil, err
		}
		return Time{CarID: carID, Slot: slot}, nil
	case 3:
		date, err := parseDate(data, VerbTime, carID, args[1])
		if err != nil {
			return nil, err
		}
		hour, err := strconv.Atoi(args[2])
		if err != nil || hour < 0 || hour > 23 {
			return nil, &ParseError{Data: data, Verb: VerbTime, CarID: carID, Err: invalid("bad hour %q", args[2])}
		}
		return Time{CarID: carID, Slot: date.Add(time.Duration(hour) * time.Hour)}, nil
	}

	return nil, &ParseError{Data: data, Verb: VerbTime, CarID: carID, Err: invalid("unexpected number of fields")}
}

func parseBack(data string, args []string) (Token, error) {
	if len(args) == 0 {
		return nil, parseErr(data, VerbBack, "missing back target")
	}

	target := BackTarget(args[0])
	rest := args[1:]

	switch target {
	case BackToStart, BackToCars:
		if err := arity(data, VerbBack, rest, 0); err != nil {
			return nil, err
		}
		return Back{Target: target}, nil
	case BackToDay:
		if err := arity(data, VerbBack, rest, 1); err != nil {
			return nil, err
		}
		carID, err := parseID(data, VerbBack, rest[0])
		if err != nil {
			return nil, err
		}
		return Back{Target: target, CarID: carID}, nil
	case BackToTime:
		if err := arity(data, VerbBack, rest, 2); err != nil {
			return nil, err
		}
		carID, err := parseID(data, VerbBack, rest[0])
		if err != nil {
			return nil, err
		}
		date, err := parseDate(data, VerbBack, carID, rest[1])
		if err != nil {
			return nil, err
		}
		return Back{Target: target, CarID: carID, Date: date}, nil
	}

	return nil, parseErr(data, VerbBack, "unknown back target %q", args[0])
}

func parseID(data string, verb Verb, s string) (int64, error) {
	v, err := validation.ValidateID(s)
	if err != nil {
		return 0, &ParseError{Data: data, Verb: verb, Err: errors.ErrInvalidToken.WithError(err)}
	}
	return v, nil
}

func parseDate(data string, verb Verb, carID int64, s string) (time.Time, error) {
	d, err := validation.ValidateDate(s)
	if err != nil {
		return time.Time{}, &ParseError{Data: data, Verb: verb, CarID: carID, Err: errors.ErrInvalidToken.WithError(err)}
	}
	return d, nil
}

// parseInstant принимает момент с любым смещением RFC 3339, секунды необязательны
func parseInstant(data string, verb Verb, carID int64, s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ParseError{Data: data, Verb: verb, CarID: carID, Err: invalid("bad instant %q", s)}
}

func arity(data string, verb Verb, args []string, want int) error {
	if len(args) != want {
		return parseErr(data, verb, "want %d fields after verb, got %d", want, len(args))
	}
	return nil
}

func parseErr(data string, verb Verb, format string, a ...interface{}) *ParseError {
	return &ParseError{Data: data, Verb: verb, Err: invalid(format, a...)}
}

func invalid(format string, a ...interface{}) error {
	return errors.ErrInvalidToken.WithContext(fmt.Sprintf(format, a...))
}

func join(verb Verb, fields ...string) string {
	return string(verb) + sep + strings.Join(fields, sep)
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}
