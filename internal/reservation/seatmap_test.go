package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func TestNewSeatMap(t *testing.T) {
	m, err := NewSeatMap(testSession("s-1"), map[model.SeatID]int64{seat(1, 1): 2500})
	require.NoError(t, err)

	assert.Equal(t, 64, m.Size())
	assert.Equal(t, "s-1", m.SessionID())
	assert.Equal(t, "evt-1", m.EventID())

	p, ok := m.BasePrice(seat(1, 1))
	require.True(t, ok)
	assert.Equal(t, int64(2500), p)

	p, ok = m.BasePrice(seat(8, 8))
	require.True(t, ok)
	assert.Equal(t, testBasePrice, p)

	_, ok = m.BasePrice(seat(9, 1))
	assert.False(t, ok)
}

func TestNewSeatMapRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.Session)
		overrides map[model.SeatID]int64
	}{
		{"empty id", func(s *model.Session) { s.ID = "" }, nil},
		{"zero rows", func(s *model.Session) { s.Rows = 0 }, nil},
		{"negative base price", func(s *model.Session) { s.BasePrice = -1 }, nil},
		{"override outside grid", func(*model.Session) {}, map[model.SeatID]int64{seat(0, 1): 100}},
		{"negative override", func(*model.Session) {}, map[model.SeatID]int64{seat(1, 1): -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession("s-1")
			tt.mutate(&s)
			_, err := NewSeatMap(s, tt.overrides)
			assert.Error(t, err)
		})
	}
}

func TestSeatMapSeatIDIsRowMajor(t *testing.T) {
	m, err := NewSeatMap(testSession("s-1"), nil)
	require.NoError(t, err)

	assert.Equal(t, seat(1, 1), m.SeatID(0))
	assert.Equal(t, seat(1, 8), m.SeatID(7))
	assert.Equal(t, seat(2, 1), m.SeatID(8))
	assert.Equal(t, seat(8, 8), m.SeatID(63))
}

func TestSeatMapLayout(t *testing.T) {
	m, err := NewSeatMap(testSession("s-1"), map[model.SeatID]int64{seat(2, 3): 900})
	require.NoError(t, err)

	l := m.Layout()
	require.Len(t, l.Seats, 8)
	assert.Equal(t, "A", l.Seats[0].Label)
	assert.Equal(t, "H", l.Seats[7].Label)
	assert.Equal(t, int64(900), l.Seats[1].Prices[2])
	assert.Equal(t, testBasePrice, l.Seats[1].Prices[3])
}

func TestNormalize(t *testing.T) {
	m, err := NewSeatMap(testSession("s-1"), nil)
	require.NoError(t, err)

	ids, err := m.normalize(seats(seat(2, 1), seat(1, 3), seat(2, 1)))
	require.NoError(t, err)
	assert.Equal(t, seats(seat(1, 3), seat(2, 1)), ids)

	_, err = m.normalize(nil)
	assert.ErrorIs(t, err, ErrNoSeats)

	_, err = m.normalize(seats(seat(1, 9)))
	assert.ErrorIs(t, err, ErrUnknownSeat)
}
