package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func newTestEngine(t *testing.T, clock Clock, store TicketStore, opts ...EngineOption) *Engine {
	t.Helper()
	loader := NewStaticLoader(
		SessionSource{Session: testSession("s-1")},
		SessionSource{Session: testSession("s-2"), Sold: seats(seat(8, 8))},
	)
	cfg := EngineConfig{Hold: HoldConfig{TTL: 120 * time.Second, HeartbeatPeriod: 30 * time.Second}}
	return NewEngine(cfg, loader, store, clock, nil, opts...)
}

func TestEngineEndToEnd(t *testing.T) {
	clock := newFakeClock()
	store := &memStore{}
	e := newTestEngine(t, clock, store)
	ctx := context.Background()

	snap, err := e.GetSeatMap(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, snap.Seats, 64)
	assert.Equal(t, 64, snap.Count(model.SeatAvailable))

	hold, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1), seat(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(120*time.Second), hold.ExpiresAt)

	_, err = e.ClaimSeats(ctx, "s-1", "Y", seats(seat(1, 2), seat(1, 3)))
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, seats(seat(1, 2)), ce.Seats)

	quote, err := e.PrepareCheckout(ctx, "s-1", "X", seats(seat(1, 1), seat(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, 2*testBasePrice, quote.TotalPrice)

	ticket, err := e.FinalizeCheckout(ctx, "s-1", "X", quote)
	require.NoError(t, err)
	assert.Equal(t, seats(seat(1, 1), seat(1, 2)), ticket.SeatIDs)
	assert.Equal(t, "s-1", ticket.SessionID)
	assert.Equal(t, 1, store.count())

	snap, err = e.GetSeatMap(ctx, "s-1")
	require.NoError(t, err)
	for _, id := range seats(seat(1, 1), seat(1, 2)) {
		s, ok := snap.Seat(id)
		require.True(t, ok)
		assert.Equal(t, model.SeatSold, s.Status)
	}
	assert.Equal(t, model.SeatAvailable, statusOf(t, mustInventory(t, e, "s-1"), seat(1, 3)))
}

func TestEngineExpiryReclamation(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, &memStore{})
	ctx := context.Background()

	_, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(2, 2)))
	require.NoError(t, err)

	clock.Advance(120 * time.Second)
	_, err = e.ClaimSeats(ctx, "s-1", "Y", seats(seat(2, 2)))
	require.NoError(t, err)

	_, err = e.RenewHold(ctx, "s-1", "X")
	assert.True(t, IsNotHolder(err))
}

func TestEngineRenewAndRelease(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, &memStore{})
	ctx := context.Background()

	first, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1), seat(1, 2)))
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	renewed, err := e.RenewHold(ctx, "s-1", "X")
	require.NoError(t, err)
	assert.Equal(t, first.ID, renewed.ID)
	assert.Equal(t, clock.Now().Add(120*time.Second), renewed.ExpiresAt)

	hold, ok, err := e.HoldOf(ctx, "s-1", "X")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, renewed.ExpiresAt, hold.ExpiresAt)

	released, err := e.ReleaseSeats(ctx, "s-1", "X", nil)
	require.NoError(t, err)
	assert.Len(t, released, 2)

	_, ok, err = e.HoldOf(ctx, "s-1", "X")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineSeedsSoldSeats(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), &memStore{})

	_, err := e.ClaimSeats(context.Background(), "s-2", "X", seats(seat(8, 8)))
	assert.True(t, IsConflict(err))
}

func TestEngineSessionsAreIndependent(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), &memStore{})
	ctx := context.Background()

	_, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)
	_, err = e.ClaimSeats(ctx, "s-2", "Y", seats(seat(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 2, e.ActiveSessions())
}

func TestEngineUnknownSession(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), &memStore{})

	_, err := e.GetSeatMap(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.GetSeatMap(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type failingLoader struct{}

func (failingLoader) LoadSession(context.Context, string) (SessionSource, error) {
	return SessionSource{}, errors.New("db down")
}

func TestEngineLoaderFailure(t *testing.T) {
	e := NewEngine(EngineConfig{}, failingLoader{}, &memStore{}, newFakeClock(), nil)

	_, err := e.GetSeatMap(context.Background(), "s-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestEngineFinalizeSessionMismatch(t *testing.T) {
	e := newTestEngine(t, newFakeClock(), &memStore{})
	ctx := context.Background()

	_, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)
	quote, err := e.PrepareCheckout(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)

	_, err = e.FinalizeCheckout(ctx, "s-2", "X", quote)
	assert.ErrorIs(t, err, ErrSessionMismatch)
}

func TestEngineArchivesStartedSessions(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, &memStore{})
	ctx := context.Background()

	_, err := e.GetSeatMap(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.ActiveSessions())

	clock.Advance(48 * time.Hour)
	assert.Equal(t, 1, e.ArchiveEnded())
	assert.Equal(t, 0, e.ActiveSessions())

	_, err = e.GetSeatMap(ctx, "s-1")
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, 0, e.ActiveSessions())
}

func TestEngineRejectsStartedSessionOnAccess(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, clock, &memStore{})
	ctx := context.Background()

	_, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)

	clock.Advance(49 * time.Hour)
	_, err = e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 2)))
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, 0, e.ActiveSessions())
}

func TestEngineForwardsSeatChanges(t *testing.T) {
	listener := &recordingListener{}
	e := newTestEngine(t, newFakeClock(), &memStore{}, WithSeatListener(listener))
	ctx := context.Background()

	_, err := e.ClaimSeats(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)
	_, err = e.ReleaseSeats(ctx, "s-1", "X", seats(seat(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, []string{ReasonClaimed, ReasonReleased}, listener.reasons())
}

func TestEngineConcurrentCheckoutNoDoubleSale(t *testing.T) {
	store := &memStore{}
	e := newTestEngine(t, SystemClock{}, store)
	ctx := context.Background()
	wanted := seats(seat(4, 4), seat(4, 5))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			if _, err := e.ClaimSeats(ctx, "s-1", token, wanted); err != nil {
				return
			}
			quote, err := e.PrepareCheckout(ctx, "s-1", token, wanted)
			if err != nil {
				return
			}
			_, _ = e.FinalizeCheckout(ctx, "s-1", token, quote)
		}(fmt.Sprintf("holder-%d", i))
	}
	wg.Wait()

	assert.Equal(t, 1, store.count())
	snap, err := e.GetSeatMap(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Count(model.SeatSold))
}

func TestEngineStartStop(t *testing.T) {
	e := newTestEngine(t, SystemClock{}, &memStore{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx))
	assert.Error(t, e.Start(ctx))
	assert.True(t, e.HoldStats().IsRunning)

	e.Stop()
	assert.False(t, e.HoldStats().IsRunning)
	e.Stop()
}

func mustInventory(t *testing.T, e *Engine, id string) *SessionInventory {
	t.Helper()
	inv, err := e.inventory(context.Background(), id)
	require.NoError(t, err)
	return inv
}
