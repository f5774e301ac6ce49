package token

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/testdrive/pkg/errors"
)

var (
	testDate = time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC)
	testSlot = time.Date(2025, 8, 16, 13, 0, 0, 0, time.UTC)
)

func TestParse(t *testing.T) {
	tests := []struct {
		data string
		want Token
	}{
		{"START", Start{}},
		{"CARS", Cars{}},
		{"CAR|7", Car{CarID: 7}},
		{"DAY|7|2025-08-16", Day{CarID: 7, Date: testDate}},
		{"TIME|7|2025-08-16T13:00Z", Time{CarID: 7, Slot: testSlot}},
		{"TIME|7|2025-08-16|13", Time{CarID: 7, Slot: testSlot}},
		{"TIME|7|2025-08-16T16:00+03:00", Time{CarID: 7, Slot: testSlot}},
		{"TIME|7|2025-08-16T13:00:00Z", Time{CarID: 7, Slot: testSlot}},
		{"CONFIRM|7|2025-08-16T13:00Z", Confirm{CarID: 7, Slot: testSlot}},
		{"MY", My{}},
		{"CANCEL_BOOK|42", CancelBook{BookingID: 42}},
		{"CANCEL_BOOKING|42", CancelBook{BookingID: 42}},
		{"CANCEL_FLOW", CancelFlow{}},
		{"CANCEL", CancelFlow{}},
		{"BACK|START", Back{Target: BackToStart}},
		{"BACK|CARS", Back{Target: BackToCars}},
		{"BACK|DAY|7", Back{Target: BackToDay, CarID: 7}},
		{"BACK|TIME|7|2025-08-16", Back{Target: BackToTime, CarID: 7, Date: testDate}},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := Parse(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"NOPE",
		"start",
		"START|1",
		"CAR",
		"CAR|abc",
		"CAR|0",
		"CAR|-1",
		"DAY|7",
		"DAY|7|16.08.2025",
		"TIME|7",
		"TIME|7|tomorrow",
		"TIME|7|2025-08-16|24",
		"TIME|7|2025-08-16|13|00",
		"CONFIRM|7",
		"CONFIRM|7|2025-08-16",
		"CANCEL_BOOK|x",
		"BACK",
		"BACK|HOME",
		"BACK|DAY",
		"BACK|TIME|7",
		"CAR|1234567890123456789012345678901234567890123456789012345678901234",
	}

	for _, data := range tests {
		t.Run(data, func(t *testing.T) {
			tok, err := Parse(data)
			assert.Nil(t, tok)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrInvalidToken), "error %v is not ErrInvalidToken", err)

			var pe *ParseError
			assert.True(t, stderrors.As(err, &pe))
		})
	}
}

func TestParse_TimeErrorKeepsCarID(t *testing.T) {
	_, err := Parse("TIME|7|2025-08-16|13|00")

	var pe *ParseError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, VerbTime, pe.Verb)
	assert.Equal(t, int64(7), pe.CarID)
}

func TestString_Canonical(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		tok  Token
		want string
	}{
		{Start{}, "START"},
		{Cars{}, "CARS"},
		{Car{CarID: 7}, "CAR|7"},
		{Day{CarID: 7, Date: testDate}, "DAY|7|2025-08-16"},
		{Time{CarID: 7, Slot: testSlot.In(msk)}, "TIME|7|2025-08-16T13:00Z"},
		{Confirm{CarID: 7, Slot: testSlot}, "CONFIRM|7|2025-08-16T13:00Z"},
		{Confirm{CarID: 7, Slot: testSlot.Add(30 * time.Second)}, "CONFIRM|7|2025-08-16T13:00:30Z"},
		{My{}, "MY"},
		{CancelBook{BookingID: 42}, "CANCEL_BOOK|42"},
		{CancelFlow{}, "CANCEL_FLOW"},
		{Back{Target: BackToStart}, "BACK|START"},
		{Back{Target: BackToCars}, "BACK|CARS"},
		{Back{Target: BackToDay, CarID: 7}, "BACK|DAY|7"},
		{Back{Target: BackToTime, CarID: 7, Date: testDate}, "BACK|TIME|7|2025-08-16"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tok.String())
			assert.Equal(t, tt.tok.Verb(), Verb(tt.want[:len(string(tt.tok.Verb()))]))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	const maxID = int64(9223372036854775807)

	tokens := []Token{
		Start{},
		Cars{},
		Car{CarID: maxID},
		Day{CarID: maxID, Date: testDate},
		Time{CarID: maxID, Slot: testSlot},
		Confirm{CarID: maxID, Slot: testSlot},
		Confirm{CarID: maxID, Slot: testSlot.Add(30*time.Second + 123456789)},
		My{},
		CancelBook{BookingID: maxID},
		CancelFlow{},
		Back{Target: BackToStart},
		Back{Target: BackToCars},
		Back{Target: BackToDay, CarID: maxID},
		Back{Target: BackToTime, CarID: maxID, Date: testDate},
	}

	for _, tok := range tokens {
		data := tok.String()
		t.Run(data, func(t *testing.T) {
			assert.LessOrEqual(t, len(data), MaxLength)

			parsed, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tok, parsed)
		})
	}
}

func TestLegacyTimeReencodesCanonical(t *testing.T) {
	tok, err := Parse("TIME|7|2025-08-16|9")
	require.NoError(t, err)
	assert.Equal(t, "TIME|7|2025-08-16T09:00Z", tok.String())
}

func TestTimeWithSecondsKeepsInstant(t *testing.T) {
	tok, err := Parse("TIME|7|2025-08-16T13:00:30Z")
	require.NoError(t, err)
	tm := tok.(Time)

	data := Confirm{CarID: tm.CarID, Slot: tm.Slot}.String()
	assert.Equal(t, "CONFIRM|7|2025-08-16T13:00:30Z", data)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed.(Confirm).Slot.Equal(tm.Slot))
}

func TestSynonymsReencodeCanonical(t *testing.T) {
	tests := map[string]string{
		"CANCEL":            "CANCEL_FLOW",
		"CANCEL_BOOKING|42": "CANCEL_BOOK|42",
	}

	for data, want := range tests {
		t.Run(data, func(t *testing.T) {
			tok, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, want, tok.String())
		})
	}
}
