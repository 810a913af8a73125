package reservation

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// Default hold pacing.
const (
	DefaultHoldTTL         = 120 * time.Second
	DefaultHeartbeatPeriod = 30 * time.Second
)

// HoldConfig controls how long seats stay reserved while a caller is
// choosing, and how often a live UI is expected to renew.
type HoldConfig struct {
	TTL             time.Duration
	HeartbeatPeriod time.Duration
}

// DefaultHoldConfig returns the default pacing: 120s holds renewed every 30s.
func DefaultHoldConfig() HoldConfig {
	return HoldConfig{TTL: DefaultHoldTTL, HeartbeatPeriod: DefaultHeartbeatPeriod}
}

// Normalize replaces invalid values with the defaults.  The heartbeat must
// be shorter than the TTL or a live UI would lose its seats between
// renewals; when even the default is not, a quarter of the TTL is used.
func (c HoldConfig) Normalize() HoldConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultHoldTTL
	}
	if c.HeartbeatPeriod <= 0 || c.HeartbeatPeriod >= c.TTL {
		c.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if c.HeartbeatPeriod >= c.TTL {
		c.HeartbeatPeriod = c.TTL / 4
	}
	return c
}

// InventoryLookup resolves an already loaded session inventory.
type InventoryLookup func(sessionID string) (*SessionInventory, bool)

// HoldManager bounds the lifetime of holds independently of explicit
// release.  Every claim or renewal schedules an expiry check at the
// hold's deadline; a background loop reclaims holds that were neither
// renewed nor committed by then.  The loop wakes at least once per
// heartbeat period, so a clock that jumps forward is caught up promptly.  Inventories also reclaim overdue holds
// lazily on access, so the loop only affects how promptly seats reappear.
type HoldManager struct {
	cfg    HoldConfig
	clock  Clock
	lookup InventoryLookup
	log    *zap.Logger

	mu      sync.Mutex
	queue   expiryQueue
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	totalReclaimed int64
	lastSweep      time.Time
}

// NewHoldManager creates a hold manager.  lookup may be nil when the
// background loop is not used.
func NewHoldManager(cfg HoldConfig, clock Clock, lookup InventoryLookup, log *zap.Logger) *HoldManager {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HoldManager{
		cfg:    cfg.Normalize(),
		clock:  clock,
		lookup: lookup,
		log:    log,
		wake:   make(chan struct{}, 1),
	}
}

// Config returns the effective pacing.
func (m *HoldManager) Config() HoldConfig { return m.cfg }

// Claim holds ids for holderToken with the configured TTL.
func (m *HoldManager) Claim(inv *SessionInventory, holderToken string, ids []model.SeatID) (model.Hold, error) {
	hold, err := inv.Claim(holderToken, ids, m.cfg.TTL)
	if err != nil {
		return model.Hold{}, err
	}
	m.schedule(inv.SessionID(), hold.ExpiresAt)
	return hold, nil
}

// Renew extends the caller's hold by ttl, or by the configured TTL when
// ttl is zero.  ids may be empty to renew the whole hold.
func (m *HoldManager) Renew(inv *SessionInventory, holderToken string, ids []model.SeatID, ttl time.Duration) (model.Hold, error) {
	if ttl <= 0 {
		ttl = m.cfg.TTL
	}
	hold, err := inv.Renew(holderToken, ids, ttl)
	if err != nil {
		return model.Hold{}, err
	}
	m.schedule(inv.SessionID(), hold.ExpiresAt)
	return hold, nil
}

// Release frees seats held by the caller.
func (m *HoldManager) Release(inv *SessionInventory, holderToken string, ids []model.SeatID) ([]model.SeatID, error) {
	return inv.Release(holderToken, ids)
}

func (m *HoldManager) schedule(sessionID string, at time.Time) {
	m.mu.Lock()
	heap.Push(&m.queue, expiryEntry{sessionID: sessionID, at: at})
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Start runs the expiry loop until ctx is cancelled or Stop is called.
func (m *HoldManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("hold manager already running")
	}
	if m.lookup == nil {
		m.mu.Unlock()
		return fmt.Errorf("hold manager has no inventory lookup")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.log.Info("starting hold expiry loop",
		zap.Duration("ttl", m.cfg.TTL),
		zap.Duration("heartbeat", m.cfg.HeartbeatPeriod))

	m.wg.Add(1)
	go m.run(ctx)
	return nil
}

// Stop stops the expiry loop and waits for it to exit.
func (m *HoldManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info("hold expiry loop stopped")
}

func (m *HoldManager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		next, ok := m.queue.peek()
		stopCh := m.stopCh
		m.mu.Unlock()

		d := m.cfg.HeartbeatPeriod
		if ok {
			if until := next.at.Sub(m.clock.Now()); until < d {
				d = until
			}
			if d < 0 {
				d = 0
			}
		}
		timer := time.NewTimer(d)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stopCh:
			timer.Stop()
			return
		case <-m.wake:
			timer.Stop()
		case <-timer.C:
			if ok {
				m.SweepDue()
			}
		}
	}
}

// SweepDue reclaims holds in every session with a deadline at or before
// now and returns the number of holds released.
func (m *HoldManager) SweepDue() int {
	now := m.clock.Now()
	due := make(map[string]struct{})

	m.mu.Lock()
	for m.queue.Len() > 0 {
		next, _ := m.queue.peek()
		if next.at.After(now) {
			break
		}
		heap.Pop(&m.queue)
		due[next.sessionID] = struct{}{}
	}
	m.lastSweep = now
	m.mu.Unlock()

	reclaimed := 0
	for sessionID := range due {
		if m.lookup == nil {
			break
		}
		inv, ok := m.lookup(sessionID)
		if !ok {
			continue
		}
		if n := inv.Reap(); n > 0 {
			reclaimed += n
			m.log.Info("reclaimed expired holds",
				zap.String("session_id", sessionID),
				zap.Int("holds", n))
		}
	}

	m.mu.Lock()
	m.totalReclaimed += int64(reclaimed)
	m.mu.Unlock()
	return reclaimed
}

// HoldManagerStats reports expiry loop activity.
type HoldManagerStats struct {
	IsRunning        bool      `json:"is_running"`
	Scheduled        int       `json:"scheduled"`
	TotalReclaimed   int64     `json:"total_reclaimed"`
	LastSweep        time.Time `json:"last_sweep"`
	TTLSeconds       int64     `json:"ttl_seconds"`
	HeartbeatSeconds int64     `json:"heartbeat_seconds"`
}

// Stats returns a copy of the current statistics.
func (m *HoldManager) Stats() HoldManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return HoldManagerStats{
		IsRunning:        m.running,
		Scheduled:        m.queue.Len(),
		TotalReclaimed:   m.totalReclaimed,
		LastSweep:        m.lastSweep,
		TTLSeconds:       int64(m.cfg.TTL / time.Second),
		HeartbeatSeconds: int64(m.cfg.HeartbeatPeriod / time.Second),
	}
}

type expiryEntry struct {
	sessionID string
	at        time.Time
}

// expiryQueue is a min-heap of hold deadlines.  Renewed holds leave their
// old entry behind; it fires harmlessly because Reap only releases holds
// that are actually overdue.
type expiryQueue []expiryEntry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) { *q = append(*q, x.(expiryEntry)) }

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (q expiryQueue) peek() (expiryEntry, bool) {
	if len(q) == 0 {
		return expiryEntry{}, false
	}
	return q[0], true
}
