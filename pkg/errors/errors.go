package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind классифицирует ошибку для слоя диалога и admin API
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindBadRequest
	KindConflict
)

var kindNames = map[Kind]string{
	KindUnexpected: "unexpected",
	KindNotFound:   "not_found",
	KindBadRequest: "bad_request",
	KindConflict:   "conflict",
}

// String возвращает имя вида ошибки, пригодное для метрик
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unexpected"
}

// BotError представляет ошибку бота с кодом и контекстом
type BotError struct {
	Code    string      `json:"code"`
	Kind    Kind        `json:"-"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *BotError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, поэтому копии из WithContext/WithError
// остаются равны исходному sentinel.
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *BotError) WithContext(ctx interface{}) *BotError {
	c := *e
	c.Context = ctx
	return &c
}

// WithError добавляет underlying ошибку
func (e *BotError) WithError(err error) *BotError {
	c := *e
	c.Err = err
	return &c
}

// WithMessage заменяет человекочитаемое сообщение, сохраняя код
func (e *BotError) WithMessage(msg string) *BotError {
	c := *e
	c.Message = msg
	return &c
}

// Предопределенные ошибки
var (
	// Ошибки поиска
	ErrCarNotFound = &BotError{
		Code:    "CAR_NOT_FOUND",
		Kind:    KindNotFound,
		Message: "car not found",
	}

	ErrBookingNotFound = &BotError{
		Code:    "BOOKING_NOT_FOUND",
		Kind:    KindNotFound,
		Message: "booking not found",
	}

	ErrUserNotFound = &BotError{
		Code:    "USER_NOT_FOUND",
		Kind:    KindNotFound,
		Message: "user not found",
	}

	// Ошибки слотов
	ErrSlotNotFuture = &BotError{
		Code:    "SLOT_NOT_FUTURE",
		Kind:    KindBadRequest,
		Message: "Please select a future time slot",
	}

	ErrSlotNotHourAligned = &BotError{
		Code:    "SLOT_NOT_HOUR_ALIGNED",
		Kind:    KindBadRequest,
		Message: "Time must be aligned to the top of the hour",
	}

	ErrSlotOutsideWorkingHours = &BotError{
		Code:    "SLOT_OUTSIDE_WORKING_HOURS",
		Kind:    KindBadRequest,
		Message: "Time must be within working hours",
	}

	ErrSlotTaken = &BotError{
		Code:    "SLOT_TAKEN",
		Kind:    KindConflict,
		Message: "This slot is already booked for the selected car",
	}

	// Ошибки валидации
	ErrInvalidToken = &BotError{
		Code:    "INVALID_TOKEN",
		Kind:    KindBadRequest,
		Message: "malformed action token",
	}

	ErrInvalidID = &BotError{
		Code:    "INVALID_ID",
		Kind:    KindBadRequest,
		Message: "invalid identifier",
	}

	ErrInvalidDate = &BotError{
		Code:    "INVALID_DATE",
		Kind:    KindBadRequest,
		Message: "invalid date",
	}

	ErrInvalidCar = &BotError{
		Code:    "INVALID_CAR",
		Kind:    KindBadRequest,
		Message: "validation failed",
	}

	// Системные ошибки
	ErrDataConflict = &BotError{
		Code:    "DATA_CONFLICT",
		Kind:    KindConflict,
		Message: "Data conflict",
	}

	ErrDatabase = &BotError{
		Code:    "DATABASE",
		Kind:    KindUnexpected,
		Message: "database error",
	}

	ErrTelegramAPI = &BotError{
		Code:    "TELEGRAM_API",
		Kind:    KindUnexpected,
		Message: "telegram API error",
	}
)

// NewBotError создает новую ошибку бота
func NewBotError(code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в BotError
func Wrap(err error, code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsBotError проверяет, является ли ошибка BotError
func IsBotError(err error) bool {
	_, ok := GetBotError(err)
	return ok
}

// GetBotError извлекает BotError из цепочки ошибок
func GetBotError(err error) (*BotError, bool) {
	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr, true
	}
	return nil, false
}

// KindOf возвращает вид ошибки; всё, что не BotError, считается неожиданным
func KindOf(err error) Kind {
	if botErr, ok := GetBotError(err); ok {
		return botErr.Kind
	}
	return KindUnexpected
}
