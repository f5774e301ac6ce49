package keyboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/testdrive/internal/bot/screen"
	"github.com/region23/testdrive/internal/storage/models"
)

func TestInline(t *testing.T) {
	car := &models.Car{ID: 7, Model: "Toyota Camry"}
	slot := time.Date(2025, 8, 16, 13, 0, 0, 0, time.UTC)

	kb := Inline(screen.Confirm(car, slot))
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)

	assert.Equal(t, "✅ Confirm", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "CONFIRM|7|2025-08-16T13:00Z", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "BACK|TIME|7|2025-08-16", kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "CANCEL_FLOW", kb.InlineKeyboard[1][1].CallbackData)
}

func TestInline_NoButtons(t *testing.T) {
	assert.Nil(t, Inline(screen.FlowCanceled()))
}

func TestCommands(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 4)
	assert.Equal(t, "start", cmds[0].Command)
}
