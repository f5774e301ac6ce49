package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotError_IsMatchesByCode(t *testing.T) {
	err := ErrSlotTaken.WithContext(map[string]interface{}{"car_id": 7})

	assert.True(t, stderrors.Is(err, ErrSlotTaken))
	assert.False(t, stderrors.Is(err, ErrSlotNotFuture))

	wrapped := fmt.Errorf("create booking: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrSlotTaken))
}

func TestBotError_CopiesDoNotMutateSentinel(t *testing.T) {
	cause := stderrors.New("disk full")
	err := ErrDatabase.WithError(cause).WithMessage("insert failed")

	assert.Nil(t, ErrDatabase.Err)
	assert.Equal(t, "database error", ErrDatabase.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DATABASE: insert failed: disk full", err.Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: ErrCarNotFound, want: KindNotFound},
		{name: "bad request", err: ErrSlotNotHourAligned, want: KindBadRequest},
		{name: "conflict", err: fmt.Errorf("wrapped: %w", ErrSlotTaken), want: KindConflict},
		{name: "plain error", err: stderrors.New("boom"), want: KindUnexpected},
		{name: "nil-kind bot error", err: NewBotError("X", "y"), want: KindUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "unexpected", Kind(42).String())
}
