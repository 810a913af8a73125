package repository

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/seat-reservation-engine/internal/model"
    "github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// MemoryTicketStore keeps tickets in process memory.  It enforces the same
// uniqueness rules as the MySQL schema and is used when no database is
// configured.
type MemoryTicketStore struct {
    mu      sync.RWMutex
    tickets map[string]model.Ticket
    seats   map[string]map[model.SeatID]string // session -> seat -> ticket id
}

// NewMemoryTicketStore returns an empty store.
func NewMemoryTicketStore() *MemoryTicketStore {
    return &MemoryTicketStore{
        tickets: make(map[string]model.Ticket),
        seats:   make(map[string]map[model.SeatID]string),
    }
}

// Insert stores a ticket.  A reused ticket id or an already sold seat is
// reported as ErrConflict and nothing is stored.
func (s *MemoryTicketStore) Insert(_ context.Context, t model.Ticket) error {
    if t.SessionID == "" || len(t.SeatIDs) == 0 {
        return fmt.Errorf("insert ticket %s: incomplete ticket", t.ID)
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.tickets[t.ID]; ok {
        return fmt.Errorf("insert ticket %s: %w", t.ID, ErrConflict)
    }
    sold := s.seats[t.SessionID]
    for _, id := range t.SeatIDs {
        if _, taken := sold[id]; taken {
            return fmt.Errorf("insert ticket %s: seat %s: %w", t.ID, id, ErrConflict)
        }
    }
    if sold == nil {
        sold = make(map[model.SeatID]string, len(t.SeatIDs))
        s.seats[t.SessionID] = sold
    }
    for _, id := range t.SeatIDs {
        sold[id] = t.ID
    }
    t.SeatIDs = append([]model.SeatID(nil), t.SeatIDs...)
    s.tickets[t.ID] = t
    return nil
}

// ListByHolder returns the holder's tickets, newest first.
func (s *MemoryTicketStore) ListByHolder(_ context.Context, holder string) ([]model.Ticket, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    var out []model.Ticket
    for _, t := range s.tickets {
        if t.HolderToken == holder {
            out = append(out, t)
        }
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
            return out[i].IssuedAt.After(out[j].IssuedAt)
        }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

// Len returns the number of stored tickets.
func (s *MemoryTicketStore) Len() int {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return len(s.tickets)
}

// DemoSessions builds 8x8 sessions starting a day apart, beginning one day
// after now.  The last two rows are premium seats.
func DemoSessions(ids []string, now time.Time) []reservation.SessionSource {
    out := make([]reservation.SessionSource, 0, len(ids))
    for i, id := range ids {
        s := model.Session{
            ID:        id,
            EventID:   "demo-event",
            Title:     "Demo Night",
            StartsAt:  now.UTC().Truncate(time.Hour).Add(time.Duration(i+1) * 24 * time.Hour),
            Rows:      8,
            Cols:      8,
            BasePrice: 10000,
        }
        premium := make(map[model.SeatID]int64, 2*s.Cols)
        for r := s.Rows - 1; r <= s.Rows; r++ {
            for c := 1; c <= s.Cols; c++ {
                premium[model.SeatID{Row: r, Col: c}] = 15000
            }
        }
        out = append(out, reservation.SessionSource{Session: s, PriceOverrides: premium})
    }
    return out
}
