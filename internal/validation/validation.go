package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/region23/testdrive/pkg/errors"
)

const (
	DateLayout = "2006-01-02"

	MaxCarModelLength       = 255
	MaxCarDescriptionLength = 2000
)

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Window рабочее окно записи в часах UTC: начало включительно, конец исключительно
type Window struct {
	StartHour int
	EndHour   int
}

// DefaultWindow окно 09:00–18:00 UTC
var DefaultWindow = Window{StartHour: 9, EndHour: 18}

// Contains проверяет, что время суток момента лежит в окне
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= w.StartHour*60 && minutes < w.EndHour*60
}

// String форматирует окно для сообщений пользователю
func (w Window) String() string {
	return fmt.Sprintf("%02d:00–%02d:00 UTC", w.StartHour, w.EndHour)
}

// ValidateID разбирает положительный идентификатор
func ValidateID(idStr string) (int64, error) {
	if idStr == "" {
		return 0, errors.ErrInvalidID.WithContext("ID не может быть пустым")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, errors.ErrInvalidID.WithError(err).WithContext(map[string]interface{}{
			"input": idStr,
		})
	}

	if id <= 0 {
		return 0, errors.ErrInvalidID.WithContext(map[string]interface{}{
			"input":  idStr,
			"reason": "ID должен быть положительным числом",
		})
	}

	return id, nil
}

// ValidateDate разбирает дату в формате YYYY-MM-DD как полночь UTC
func ValidateDate(dateStr string) (time.Time, error) {
	if !dateRegex.MatchString(dateStr) {
		return time.Time{}, errors.ErrInvalidDate.WithContext(map[string]interface{}{
			"date":   dateStr,
			"reason": "дата должна быть в формате YYYY-MM-DD",
		})
	}

	date, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, errors.ErrInvalidDate.WithError(err).WithContext(map[string]interface{}{
			"date": dateStr,
		})
	}

	return date, nil
}

// ValidateSlot проверяет начало слота в порядке: будущее, ровный час, рабочее окно.
// Возвращается первая найденная ошибка.
func ValidateSlot(now, slot time.Time, window Window) error {
	slot = slot.UTC()

	if !slot.After(now) {
		return errors.ErrSlotNotFuture.WithContext(map[string]interface{}{
			"slot": slot.Format(time.RFC3339),
			"now":  now.UTC().Format(time.RFC3339),
		})
	}

	if slot.Minute() != 0 || slot.Second() != 0 || slot.Nanosecond() != 0 {
		return errors.ErrSlotNotHourAligned.WithContext(map[string]interface{}{
			"slot": slot.Format(time.RFC3339Nano),
		})
	}

	if !window.Contains(slot) {
		return errors.ErrSlotOutsideWorkingHours.
			WithMessage("Time must be within working hours " + window.String()).
			WithContext(map[string]interface{}{
				"slot": slot.Format(time.RFC3339),
			})
	}

	return nil
}

// ValidateCar проверяет поля машины из admin API; возвращает ошибки по полям
func ValidateCar(model, description string) error {
	fields := map[string]string{}

	switch {
	case strings.TrimSpace(model) == "":
		fields["model"] = "must not be blank"
	case utf8.RuneCountInString(model) > MaxCarModelLength:
		fields["model"] = fmt.Sprintf("size must be at most %d", MaxCarModelLength)
	}

	if utf8.RuneCountInString(description) > MaxCarDescriptionLength {
		fields["description"] = fmt.Sprintf("size must be at most %d", MaxCarDescriptionLength)
	}

	if len(fields) > 0 {
		return errors.ErrInvalidCar.WithContext(fields)
	}
	return nil
}
