package reservation

import (
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// SeatMap is the immutable layout of one session: grid dimensions and the
// base price of every seat.  It is safe for concurrent use.
type SeatMap struct {
	sessionID string
	eventID   string
	title     string
	startsAt  time.Time
	rows      int
	cols      int
	prices    []int64 // row-major
}

// NewSeatMap builds a seat map from a session definition.  overrides
// replaces the session base price for individual seats.
func NewSeatMap(s model.Session, overrides map[model.SeatID]int64) (*SeatMap, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("seat map: empty session id")
	}
	if s.Rows < 1 || s.Cols < 1 {
		return nil, fmt.Errorf("seat map %s: invalid grid %dx%d", s.ID, s.Rows, s.Cols)
	}
	if s.BasePrice < 0 {
		return nil, fmt.Errorf("seat map %s: negative base price", s.ID)
	}
	m := &SeatMap{
		sessionID: s.ID,
		eventID:   s.EventID,
		title:     s.Title,
		startsAt:  s.StartsAt,
		rows:      s.Rows,
		cols:      s.Cols,
		prices:    make([]int64, s.Rows*s.Cols),
	}
	for i := range m.prices {
		m.prices[i] = s.BasePrice
	}
	for id, p := range overrides {
		if !m.Contains(id) {
			return nil, fmt.Errorf("seat map %s: price override for %s outside grid", s.ID, id)
		}
		if p < 0 {
			return nil, fmt.Errorf("seat map %s: negative price for %s", s.ID, id)
		}
		m.prices[m.index(id)] = p
	}
	return m, nil
}

func (m *SeatMap) SessionID() string   { return m.sessionID }
func (m *SeatMap) EventID() string     { return m.eventID }
func (m *SeatMap) Title() string       { return m.title }
func (m *SeatMap) StartsAt() time.Time { return m.startsAt }
func (m *SeatMap) Rows() int           { return m.rows }
func (m *SeatMap) Cols() int           { return m.cols }
func (m *SeatMap) Size() int           { return m.rows * m.cols }

// Session returns the session definition without price overrides.
func (m *SeatMap) Session() model.Session {
	return model.Session{
		ID:       m.sessionID,
		EventID:  m.eventID,
		Title:    m.title,
		StartsAt: m.startsAt,
		Rows:     m.rows,
		Cols:     m.cols,
	}
}

// Contains reports whether id lies inside the grid.
func (m *SeatMap) Contains(id model.SeatID) bool {
	return id.Row >= 1 && id.Row <= m.rows && id.Col >= 1 && id.Col <= m.cols
}

// BasePrice returns the base price of a seat.
func (m *SeatMap) BasePrice(id model.SeatID) (int64, bool) {
	if !m.Contains(id) {
		return 0, false
	}
	return m.prices[m.index(id)], true
}

// SeatID returns the seat at row-major index i.
func (m *SeatMap) SeatID(i int) model.SeatID {
	return model.SeatID{Row: i/m.cols + 1, Col: i%m.cols + 1}
}

func (m *SeatMap) index(id model.SeatID) int {
	return (id.Row-1)*m.cols + (id.Col - 1)
}

// Layout is the JSON view of a seat map.
type Layout struct {
	SessionID string      `json:"session_id"`
	EventID   string      `json:"event_id"`
	Title     string      `json:"title,omitempty"`
	StartsAt  time.Time   `json:"starts_at"`
	Rows      int         `json:"rows"`
	Cols      int         `json:"cols"`
	Seats     []LayoutRow `json:"seat_rows"`
}

// LayoutRow lists the prices of one row, grouped for rendering.
type LayoutRow struct {
	Row    int     `json:"row"`
	Label  string  `json:"label"`
	Prices []int64 `json:"prices"`
}

// Layout renders the map grouped by row.
func (m *SeatMap) Layout() Layout {
	l := Layout{
		SessionID: m.sessionID,
		EventID:   m.eventID,
		Title:     m.title,
		StartsAt:  m.startsAt,
		Rows:      m.rows,
		Cols:      m.cols,
		Seats:     make([]LayoutRow, m.rows),
	}
	for r := 0; r < m.rows; r++ {
		prices := make([]int64, m.cols)
		copy(prices, m.prices[r*m.cols:(r+1)*m.cols])
		l.Seats[r] = LayoutRow{Row: r + 1, Label: model.RowLabel(r), Prices: prices}
	}
	return l
}

// normalize validates ids against the grid, removes duplicates and sorts
// them row-major.
func (m *SeatMap) normalize(ids []model.SeatID) ([]model.SeatID, error) {
	if len(ids) == 0 {
		return nil, ErrNoSeats
	}
	seen := make(map[model.SeatID]struct{}, len(ids))
	out := make([]model.SeatID, 0, len(ids))
	for _, id := range ids {
		if !m.Contains(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSeat, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sortSeats(out)
	return out, nil
}

func sortSeats(ids []model.SeatID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
