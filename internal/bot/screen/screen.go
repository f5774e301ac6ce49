// Package screen строит тексты и клавиатуры экранов бота.
// Функции пакета чистые: только данные на входе, без обращений к хранилищу.
package screen

import (
	"fmt"
	"strings"
	"time"

	"github.com/region23/testdrive/internal/bot/token"
	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/internal/validation"
)

const (
	dayLabelLayout  = "Mon, 02 Jan"
	hourLabelLayout = "15:04 UTC"
	humanLayout     = "Mon, 02 Jan 2006, 15:04 UTC"
)

// Тексты, которые использует диалог при восстановлении после ошибок
const (
	MenuPrompt     = "What would you like to do?"
	NextPrompt     = "What would you like to do next?"
	ChooseOption   = "Please choose an option:"
	SlotTakenText  = "⚠️ This slot was just booked by someone else. Pick another time:"
	CarGoneText    = "The selected car is no longer available. Please choose another:"
	BadTimeText    = "Could not parse time, please pick a day again:"
	SlowDownText   = "⏳ Too many requests. Please wait a moment and try again:"
	chooseCarText  = "Choose a car:"
	noCarsText     = "No cars yet."
	pickDayText    = "Pick a day (UTC):"
	backButtonText = "⬅️ Back"
)

// Button кнопка с токеном, который придет при нажатии
type Button struct {
	Text  string
	Token token.Token
}

// Screen текст сообщения и сетка кнопок; пустой Rows означает сообщение без клавиатуры
type Screen struct {
	Text string
	Rows [][]Button
}

// HasKeyboard сообщает, есть ли у экрана кнопки
func (s Screen) HasKeyboard() bool {
	return len(s.Rows) > 0
}

func button(text string, tok token.Token) Button {
	return Button{Text: text, Token: tok}
}

func back(tok token.Back) []Button {
	return []Button{button(backButtonText, tok)}
}

func mainMenuRows() [][]Button {
	return [][]Button{{
		button("Cars 🚗", token.Cars{}),
		button("My bookings 📅", token.My{}),
	}}
}

// FormatSlot форматирует слот для людей: "Sat, 16 Aug 2025, 13:00 UTC"
func FormatSlot(slot time.Time) string {
	return slot.UTC().Format(humanLayout)
}

// Menu главное меню с произвольной подписью
func Menu(text string) Screen {
	return Screen{Text: text, Rows: mainMenuRows()}
}

// Welcome приветствие для /start
func Welcome(name string) Screen {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "friend"
	}
	return Menu(fmt.Sprintf("Welcome, %s!\n\n"+
		"I can help you book a car test drive.\n"+
		"Use the menu below to browse cars or view your bookings.", name))
}

// Help справка для /help
func Help(window validation.Window) Screen {
	return Menu("🤖 Help\n\n" +
		"• Tap Cars to browse and book a test drive.\n" +
		"• Tap My bookings to view or cancel your active bookings.\n\n" +
		fmt.Sprintf("All times are handled in UTC and slots are hourly between %02d:00–%02d:00.",
			window.StartHour, window.EndHour))
}

// CarList список машин
func CarList(cars []*models.Car) Screen {
	return CarListWithText(chooseCarText, cars)
}

// CarListWithText список машин с другим заголовком
func CarListWithText(text string, cars []*models.Car) Screen {
	if len(cars) == 0 {
		text = noCarsText
	}
	rows := make([][]Button, 0, len(cars)+1)
	for _, c := range cars {
		rows = append(rows, []Button{button(c.Model, token.Car{CarID: c.ID})})
	}
	rows = append(rows, back(token.Back{Target: token.BackToStart}))
	return Screen{Text: text, Rows: rows}
}

// Midnight начало суток UTC для момента t
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Days возвращает n дней начиная с дня момента now (UTC)
func Days(now time.Time, n int) []time.Time {
	first := Midnight(now)
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, first.AddDate(0, 0, i))
	}
	return days
}

// DayPicker выбор дня после выбора машины
func DayPicker(car *models.Car, days []time.Time) Screen {
	text := "Selected: " + car.Model
	if desc := strings.TrimSpace(car.Description); desc != "" {
		text += "\n\n" + car.Description
	}
	text += "\n\n" + pickDayText
	return dayPicker(text, car.ID, days)
}

// DayPickerAgain выбор дня при возврате назад, машина уже известна по id
func DayPickerAgain(carID int64, days []time.Time) Screen {
	return dayPicker(pickDayText, carID, days)
}

// DayPickerWithText выбор дня с произвольным заголовком
func DayPickerWithText(text string, carID int64, days []time.Time) Screen {
	return dayPicker(text, carID, days)
}

func dayPicker(text string, carID int64, days []time.Time) Screen {
	rows := make([][]Button, 0, len(days)+1)
	for _, d := range days {
		rows = append(rows, []Button{button(d.Format(dayLabelLayout), token.Day{CarID: carID, Date: d})})
	}
	rows = append(rows, back(token.Back{Target: token.BackToCars}))
	return Screen{Text: text, Rows: rows}
}

// SlotPicker выбор часа; prefix добавляется первой строкой, если не пустой
func SlotPicker(carID int64, day time.Time, slots []time.Time, prefix string) Screen {
	text := "Pick a time (UTC) for " + token.FormatDate(day) + ":"
	if prefix != "" {
		text = prefix + "\n" + text
	}

	rows := make([][]Button, 0, len(slots)+1)
	for _, s := range slots {
		s = s.UTC()
		rows = append(rows, []Button{button(s.Format(hourLabelLayout), token.Time{CarID: carID, Slot: s})})
	}
	rows = append(rows, back(token.Back{Target: token.BackToDay, CarID: carID}))
	return Screen{Text: text, Rows: rows}
}

// Summary описание бронирования для подтверждения и итогового сообщения
func Summary(car *models.Car, slot time.Time) string {
	return "Car: " + car.Model +
		"\nTime (UTC): " + FormatSlot(slot) +
		"\nSlot length: 1 hour"
}

// Confirm экран подтверждения выбранного слота
func Confirm(car *models.Car, slot time.Time) Screen {
	slot = slot.UTC()
	return Screen{
		Text: "Please confirm your booking:\n\n" + Summary(car, slot),
		Rows: [][]Button{
			{button("✅ Confirm", token.Confirm{CarID: car.ID, Slot: slot})},
			{
				button(backButtonText, token.Back{Target: token.BackToTime, CarID: car.ID, Date: Midnight(slot)}),
				button("✖️ Cancel", token.CancelFlow{}),
			},
		},
	}
}

// Booked итог успешной записи, без кнопок
func Booked(car *models.Car, slot time.Time) Screen {
	return Screen{Text: "✅ Booking confirmed!\n\n" + Summary(car, slot)}
}

// Reminder напоминание о скором тест-драйве
func Reminder(carModel string, slot time.Time) Screen {
	return Screen{Text: "⏰ Reminder: your test drive of " + carModel + " starts at " + FormatSlot(slot) + "."}
}

// Bookings активные бронирования с кнопками отмены
func Bookings(list []*models.BookingView) Screen {
	if len(list) == 0 {
		return Menu("You have no active bookings.")
	}

	var b strings.Builder
	b.WriteString("Your active bookings:\n\n")
	rows := make([][]Button, 0, len(list)+1)
	for _, v := range list {
		fmt.Fprintf(&b, "#%d — %s — %s\n", v.ID, v.CarModel, FormatSlot(v.SlotStart))
		rows = append(rows, []Button{button(fmt.Sprintf("Cancel #%d", v.ID), token.CancelBook{BookingID: v.ID})})
	}
	rows = append(rows, back(token.Back{Target: token.BackToStart}))

	return Screen{Text: b.String(), Rows: rows}
}

// FlowCanceled сообщение о выходе из сценария, без кнопок
func FlowCanceled() Screen {
	return Screen{Text: "❌ Booking flow canceled."}
}

// Fallback безопасный экран после неожиданной ошибки
func Fallback() Screen {
	return Menu("Something went wrong. Here's the menu:")
}
