package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/testdrive/internal/booking"
	"github.com/region23/testdrive/internal/bot/flow"
	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/bot/service"
	"github.com/region23/testdrive/internal/bot/token"
	storagemodels "github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/internal/storage/sqlite"
	"github.com/region23/testdrive/internal/testutil"
	"github.com/region23/testdrive/internal/validation"
)

var now = time.Date(2025, 8, 16, 10, 20, 0, 0, time.UTC)

type harness struct {
	tg         *testutil.FakeTelegram
	store      *sqlite.SQLiteStorage
	car        *storagemodels.Car
	dispatcher *Dispatcher
}

func newHarness(t *testing.T, limiter ChatLimiter) *harness {
	t.Helper()
	ctx := testutil.TestContext()
	log := testutil.SetupTestLogger()

	store := testutil.SetupTestDB(t)
	car := &storagemodels.Car{Model: "Tesla Model 3"}
	require.NoError(t, store.CreateCar(ctx, car))

	alloc := booking.NewAllocator(store, booking.FixedTimeProvider{At: now}, validation.DefaultWindow, log)
	tg := &testutil.FakeTelegram{}

	d := NewDispatcher(Deps{
		Gateway: service.NewService(tg, log),
		Users:   store,
		Flow:    flow.NewMachine(alloc, store, 7, log),
		Window:  validation.DefaultWindow,
		Limiter: limiter,
		Logger:  log,
	})

	return &harness{tg: tg, store: store, car: car, dispatcher: d}
}

func textUpdate(text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   10,
			Chat: models.Chat{ID: 500},
			From: &models.User{ID: 77, FirstName: "Anna", LastName: "Ivanova", Username: "anna"},
			Text: text,
		},
	}
}

func callbackUpdate(data string) *models.Update {
	return &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: 77, FirstName: "Anna"},
			Data: data,
			Message: models.MaybeInaccessibleMessage{
				Message: &models.Message{ID: 33, Chat: models.Chat{ID: 500}},
			},
		},
	}
}

func TestStart_RegistersUserAndGreets(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.dispatcher.HandleUpdate(ctx, nil, textUpdate("/start"))

	sent, _ := h.tg.Texts()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "Welcome, Anna Ivanova!"))

	user, err := h.store.GetUserByTelegramID(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "anna", user.Username)
}

func TestTextCommands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/help", "🤖 Help"},
		{"/start@TestDriveBot", "Welcome, Anna Ivanova!"},
		{"/cars", "Choose a car:"},
		{"Cars", "Choose a car:"},
		{"/my", "You have no active bookings."},
		{"my bookings", "You have no active bookings."},
		{"hello?", screen.ChooseOption},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			h := newHarness(t, nil)
			h.dispatcher.HandleUpdate(context.Background(), nil, textUpdate(tt.text))

			sent, edited := h.tg.Texts()
			assert.Empty(t, edited)
			require.Len(t, sent, 1)
			assert.True(t, strings.HasPrefix(sent[0], tt.want), sent[0])
		})
	}
}

func TestCallback_AcksAndEdits(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleUpdate(context.Background(), nil, callbackUpdate(token.Car{CarID: h.car.ID}.String()))

	assert.Equal(t, []string{"cb-1"}, h.tg.Answered)
	require.Len(t, h.tg.Edited, 1)
	assert.Equal(t, 33, h.tg.Edited[0].MessageID)
	assert.True(t, strings.HasPrefix(h.tg.Edited[0].Text, "Selected: Tesla Model 3"))
	assert.Empty(t, h.tg.Sent)
}

func TestCallback_InaccessibleMessage(t *testing.T) {
	h := newHarness(t, nil)
	u := callbackUpdate("START")
	u.CallbackQuery.Message = models.MaybeInaccessibleMessage{
		InaccessibleMessage: &models.InaccessibleMessage{Chat: models.Chat{ID: 500}, MessageID: 44},
	}

	h.dispatcher.HandleUpdate(context.Background(), nil, u)

	require.Len(t, h.tg.Edited, 1)
	assert.Equal(t, 44, h.tg.Edited[0].MessageID)
}

func TestCallback_ConfirmBooksAndSendsMenu(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	slot := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

	h.dispatcher.HandleUpdate(ctx, nil, callbackUpdate(token.Confirm{CarID: h.car.ID, Slot: slot}.String()))

	sent, edited := h.tg.Texts()
	require.Len(t, edited, 1)
	assert.True(t, strings.HasPrefix(edited[0], "✅ Booking confirmed!"))
	require.Len(t, sent, 1)
	assert.Equal(t, screen.NextPrompt, sent[0])

	count, err := h.store.CountConfirmed(ctx, h.car.ID, slot)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCallback_EditRejectedFallsBackToSend(t *testing.T) {
	h := newHarness(t, nil)
	h.tg.EditErr = assert.AnError

	h.dispatcher.HandleUpdate(context.Background(), nil, callbackUpdate("CARS"))

	sent, edited := h.tg.Texts()
	assert.Empty(t, edited)
	require.Len(t, sent, 1)
	assert.Equal(t, "Choose a car:", sent[0])
}

func TestCallback_GarbageShowsMenu(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatcher.HandleUpdate(context.Background(), nil, callbackUpdate("DATE:2025-08-16"))

	_, edited := h.tg.Texts()
	require.Len(t, edited, 1)
	assert.Equal(t, screen.MenuPrompt, edited[0])
}

// panicFlow падает на любом переходе
type panicFlow struct{}

func (panicFlow) Next(context.Context, *storagemodels.User, token.Token) ([]screen.Screen, error) {
	panic("boom")
}

func (panicFlow) Handle(context.Context, *storagemodels.User, string) ([]screen.Screen, error) {
	panic("boom")
}

func TestHandleUpdate_RecoversFromPanic(t *testing.T) {
	log := testutil.SetupTestLogger()
	store := testutil.SetupTestDB(t)
	tg := &testutil.FakeTelegram{}
	d := NewDispatcher(Deps{
		Gateway: service.NewService(tg, log),
		Users:   store,
		Flow:    panicFlow{},
		Window:  validation.DefaultWindow,
		Logger:  log,
	})

	assert.NotPanics(t, func() {
		d.HandleUpdate(context.Background(), nil, callbackUpdate("CARS"))
	})

	sent, _ := tg.Texts()
	require.Len(t, sent, 1)
	assert.Equal(t, "Something went wrong. Here's the menu:", sent[0])
}

type denyAll struct{}

func (denyAll) AllowChat(int64) bool { return false }

func TestHandleUpdate_RateLimited(t *testing.T) {
	h := newHarness(t, denyAll{})
	clock := now
	h.dispatcher.notices.now = func() time.Time { return clock }

	h.dispatcher.HandleUpdate(context.Background(), nil, callbackUpdate("CARS"))
	h.dispatcher.HandleUpdate(context.Background(), nil, textUpdate("/start"))

	assert.Equal(t, []string{"cb-1"}, h.tg.Answered, "callback is still acknowledged")
	sent, edited := h.tg.Texts()
	assert.Equal(t, []string{screen.SlowDownText}, sent, "one notice per interval")
	assert.Empty(t, edited)
	require.NotNil(t, h.tg.Sent[0].ReplyMarkup, "notice keeps the menu")

	clock = clock.Add(slowDownNoticeEvery)
	h.dispatcher.HandleUpdate(context.Background(), nil, textUpdate("/cars"))

	sent, _ = h.tg.Texts()
	assert.Equal(t, []string{screen.SlowDownText, screen.SlowDownText}, sent)
}

func TestNoticeThrottle_PerChat(t *testing.T) {
	n := newNoticeThrottle(time.Minute)
	n.now = func() time.Time { return now }

	assert.True(t, n.allow(1))
	assert.False(t, n.allow(1))
	assert.True(t, n.allow(2))
}

func TestHandleUpdate_UnsupportedUpdateIgnored(t *testing.T) {
	h := newHarness(t, nil)

	assert.NotPanics(t, func() {
		h.dispatcher.HandleUpdate(context.Background(), nil, &models.Update{ID: 9})
	})
	assert.Empty(t, h.tg.Sent)
}
