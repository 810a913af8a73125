package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

func TestHoldConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   HoldConfig
		want HoldConfig
	}{
		{"defaults kept", DefaultHoldConfig(), DefaultHoldConfig()},
		{"zero ttl", HoldConfig{HeartbeatPeriod: 10 * time.Second}, HoldConfig{TTL: DefaultHoldTTL, HeartbeatPeriod: 10 * time.Second}},
		{"heartbeat not below ttl", HoldConfig{TTL: time.Minute, HeartbeatPeriod: time.Minute}, HoldConfig{TTL: time.Minute, HeartbeatPeriod: DefaultHeartbeatPeriod}},
		{"missing heartbeat", HoldConfig{TTL: 40 * time.Second}, HoldConfig{TTL: 40 * time.Second, HeartbeatPeriod: DefaultHeartbeatPeriod}},
		{"default heartbeat not below short ttl", HoldConfig{TTL: 20 * time.Second, HeartbeatPeriod: -time.Second}, HoldConfig{TTL: 20 * time.Second, HeartbeatPeriod: 5 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestHoldManagerClaimUsesConfiguredTTL(t *testing.T) {
	clock := newFakeClock()
	inv := newTestInventory(t, clock)
	m := NewHoldManager(HoldConfig{TTL: 90 * time.Second}, clock, nil, nil)

	hold, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(90*time.Second), hold.ExpiresAt)
	assert.Equal(t, 1, m.Stats().Scheduled)
}

func TestHoldManagerRenewDefaultsToConfiguredTTL(t *testing.T) {
	clock := newFakeClock()
	inv := newTestInventory(t, clock)
	m := NewHoldManager(HoldConfig{TTL: time.Minute}, clock, nil, nil)

	_, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)
	clock.Advance(30 * time.Second)

	hold, err := m.Renew(inv, "x", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute), hold.ExpiresAt)

	hold, err = m.Renew(inv, "x", nil, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Second), hold.ExpiresAt)
}

func TestSweepDueReclaimsOverdueHolds(t *testing.T) {
	clock := newFakeClock()
	listener := &recordingListener{}
	inv := newTestInventory(t, clock, WithListener(listener))
	lookup := func(id string) (*SessionInventory, bool) { return inv, id == inv.SessionID() }
	m := NewHoldManager(HoldConfig{TTL: time.Second}, clock, lookup, nil)

	_, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, 0, m.SweepDue())
	assert.Equal(t, 1, m.Stats().Scheduled)

	clock.Advance(time.Second)
	assert.Equal(t, 1, m.SweepDue())
	assert.Equal(t, 0, m.Stats().Scheduled)
	assert.Equal(t, int64(1), m.Stats().TotalReclaimed)
	assert.Equal(t, []string{ReasonClaimed, ReasonExpired}, listener.reasons())
}

func TestSweepDueSkipsRenewedHolds(t *testing.T) {
	clock := newFakeClock()
	inv := newTestInventory(t, clock)
	lookup := func(string) (*SessionInventory, bool) { return inv, true }
	m := NewHoldManager(HoldConfig{TTL: 10 * time.Second}, clock, lookup, nil)

	_, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)
	clock.Advance(8 * time.Second)
	_, err = m.Renew(inv, "x", nil, 0)
	require.NoError(t, err)

	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, m.SweepDue())
	assert.Equal(t, model.SeatHeld, statusOf(t, inv, seat(1, 1)))

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, m.SweepDue())
}

func TestHoldManagerLoopReclaimsWithoutCallers(t *testing.T) {
	inv := newTestInventory(t, SystemClock{})
	lookup := func(string) (*SessionInventory, bool) { return inv, true }
	m := NewHoldManager(HoldConfig{TTL: 50 * time.Millisecond}, SystemClock{}, lookup, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	_, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Stats().TotalReclaimed == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.SeatAvailable, statusOf(t, inv, seat(1, 1)))
}

func TestHoldManagerLoopWakesEveryHeartbeat(t *testing.T) {
	clock := newFakeClock()
	inv := newTestInventory(t, clock)
	lookup := func(string) (*SessionInventory, bool) { return inv, true }
	m := NewHoldManager(HoldConfig{TTL: time.Hour, HeartbeatPeriod: 20 * time.Millisecond}, clock, lookup, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	_, err := m.Claim(inv, "x", seats(seat(1, 1)))
	require.NoError(t, err)

	// The deadline is an hour away, so only the heartbeat bound can fire.
	clock.Advance(2 * time.Hour)
	assert.Eventually(t, func() bool {
		return m.Stats().TotalReclaimed == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHoldManagerStatsInSeconds(t *testing.T) {
	m := NewHoldManager(DefaultHoldConfig(), nil, nil, nil)
	stats := m.Stats()
	assert.Equal(t, int64(120), stats.TTLSeconds)
	assert.Equal(t, int64(30), stats.HeartbeatSeconds)
}

func TestHoldManagerStartStop(t *testing.T) {
	m := NewHoldManager(DefaultHoldConfig(), nil, nil, nil)
	assert.Error(t, m.Start(context.Background()))

	m = NewHoldManager(DefaultHoldConfig(), nil, func(string) (*SessionInventory, bool) { return nil, false }, nil)
	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.Stats().IsRunning)
	assert.Error(t, m.Start(context.Background()))

	m.Stop()
	assert.False(t, m.Stats().IsRunning)
	m.Stop()
}
