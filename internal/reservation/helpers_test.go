package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

const testBasePrice int64 = 1500

var epoch = time.Date(2031, 3, 1, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSession(id string) model.Session {
	return model.Session{
		ID:        id,
		EventID:   "evt-1",
		Title:     "Hamlet",
		StartsAt:  epoch.Add(48 * time.Hour),
		Rows:      8,
		Cols:      8,
		BasePrice: testBasePrice,
	}
}

func newTestInventory(t *testing.T, clock Clock, opts ...InventoryOption) *SessionInventory {
	t.Helper()
	m, err := NewSeatMap(testSession("s-1"), nil)
	require.NoError(t, err)
	inv, err := NewSessionInventory(m, clock, opts...)
	require.NoError(t, err)
	return inv
}

func seat(row, col int) model.SeatID { return model.SeatID{Row: row, Col: col} }

func seats(ids ...model.SeatID) []model.SeatID { return ids }

func statusOf(t *testing.T, inv *SessionInventory, id model.SeatID) model.SeatStatus {
	t.Helper()
	s, ok := inv.Snapshot().Seat(id)
	require.True(t, ok, "seat %s missing from snapshot", id)
	return s.Status
}

// MockTicketStore is a mock implementation of TicketStore.
type MockTicketStore struct {
	mock.Mock
}

func (m *MockTicketStore) Insert(ctx context.Context, t model.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockTicketPublisher is a mock implementation of TicketPublisher.
type MockTicketPublisher struct {
	mock.Mock
}

func (m *MockTicketPublisher) PublishTicketIssued(ctx context.Context, t model.Ticket, session model.Session) error {
	args := m.Called(ctx, t, session)
	return args.Error(0)
}

// memStore records tickets in memory.
type memStore struct {
	mu      sync.Mutex
	tickets []model.Ticket
}

func (s *memStore) Insert(_ context.Context, t model.Ticket) error {
	s.mu.Lock()
	s.tickets = append(s.tickets, t)
	s.mu.Unlock()
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

type recordingListener struct {
	mu      sync.Mutex
	changes []SeatChange
}

func (l *recordingListener) SeatsChanged(c SeatChange) {
	l.mu.Lock()
	l.changes = append(l.changes, c)
	l.mu.Unlock()
}

func (l *recordingListener) reasons() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.changes))
	for i, c := range l.changes {
		out[i] = c.Reason
	}
	return out
}
