package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// DefaultArchiveInterval is how often ended sessions are dropped from memory.
const DefaultArchiveInterval = time.Minute

// EngineConfig groups engine tuning.
type EngineConfig struct {
	Hold            HoldConfig
	ArchiveInterval time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSeatListener forwards every seat change of every session to l.
func WithSeatListener(l Listener) EngineOption {
	return func(e *Engine) { e.listener = l }
}

// WithTicketPublisher sets the publisher used after tickets are stored.
func WithTicketPublisher(p TicketPublisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// Engine owns one SessionInventory per active session and exposes the
// reservation operations by session id.  Inventories are created on first
// use from the SeatMapLoader and dropped once the session has started.
type Engine struct {
	cfg       EngineConfig
	loader    SeatMapLoader
	clock     Clock
	log       *zap.Logger
	listener  Listener
	publisher TicketPublisher

	holds    *HoldManager
	checkout *CheckoutCoordinator

	mu       sync.RWMutex
	sessions map[string]*SessionInventory

	loopMu  sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewEngine wires the reservation components together.
func NewEngine(cfg EngineConfig, loader SeatMapLoader, store TicketStore, clock Clock, log *zap.Logger, opts ...EngineOption) *Engine {
	if loader == nil {
		panic("nil loader passed to NewEngine")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = DefaultArchiveInterval
	}
	e := &Engine{
		cfg:      cfg,
		loader:   loader,
		clock:    clock,
		log:      log,
		sessions: make(map[string]*SessionInventory),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.holds = NewHoldManager(cfg.Hold, clock, e.loaded, log.Named("holds"))
	var copts []CheckoutOption
	if e.publisher != nil {
		copts = append(copts, WithPublisher(e.publisher))
	}
	e.checkout = NewCheckoutCoordinator(store, clock, log.Named("checkout"), copts...)
	return e
}

// HoldConfig returns the effective hold pacing.
func (e *Engine) HoldConfig() HoldConfig { return e.holds.Config() }

// GetSeatMap returns the current state of every seat of a session.
func (e *Engine) GetSeatMap(ctx context.Context, sessionID string) (Snapshot, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return inv.Snapshot(), nil
}

// Layout returns the immutable grid and prices of a session.
func (e *Engine) Layout(ctx context.Context, sessionID string) (Layout, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return Layout{}, err
	}
	return inv.SeatMap().Layout(), nil
}

// ClaimSeats holds seats for holderToken, all or nothing.
func (e *Engine) ClaimSeats(ctx context.Context, sessionID, holderToken string, seats []model.SeatID) (model.Hold, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return model.Hold{}, err
	}
	return e.holds.Claim(inv, holderToken, seats)
}

// RenewHold extends the caller's whole hold by the configured TTL.
func (e *Engine) RenewHold(ctx context.Context, sessionID, holderToken string) (model.Hold, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return model.Hold{}, err
	}
	return e.holds.Renew(inv, holderToken, nil, 0)
}

// ReleaseSeats frees seats held by the caller; no seats means the whole hold.
func (e *Engine) ReleaseSeats(ctx context.Context, sessionID, holderToken string, seats []model.SeatID) ([]model.SeatID, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.holds.Release(inv, holderToken, seats)
}

// PrepareCheckout prices the caller's held seats into a quote.
func (e *Engine) PrepareCheckout(ctx context.Context, sessionID, holderToken string, seats []model.SeatID) (model.PriceQuote, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return model.PriceQuote{}, err
	}
	return e.checkout.Prepare(ctx, inv, holderToken, seats)
}

// FinalizeCheckout commits a quote into a ticket.
func (e *Engine) FinalizeCheckout(ctx context.Context, sessionID, holderToken string, quote model.PriceQuote) (model.Ticket, error) {
	if quote.SessionID != sessionID {
		return model.Ticket{}, ErrSessionMismatch
	}
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return model.Ticket{}, err
	}
	return e.checkout.Finalize(ctx, inv, holderToken, quote)
}

// HoldOf returns the caller's live hold in a session.
func (e *Engine) HoldOf(ctx context.Context, sessionID, holderToken string) (model.Hold, bool, error) {
	inv, err := e.inventory(ctx, sessionID)
	if err != nil {
		return model.Hold{}, false, err
	}
	hold, ok := inv.HoldOf(holderToken)
	return hold, ok, nil
}

// inventory returns the session's inventory, loading it on first use.
func (e *Engine) inventory(ctx context.Context, sessionID string) (*SessionInventory, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	now := e.clock.Now()

	e.mu.RLock()
	inv, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if ok {
		if ended(inv.SeatMap(), now) {
			e.drop(sessionID)
			return nil, ErrSessionEnded
		}
		return inv, nil
	}

	src, err := e.loader.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	m, err := NewSeatMap(src.Session, src.PriceOverrides)
	if err != nil {
		return nil, err
	}
	if ended(m, now) {
		return nil, ErrSessionEnded
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if inv, ok := e.sessions[sessionID]; ok {
		return inv, nil
	}
	opts := []InventoryOption{WithSoldSeats(src.Sold)}
	if e.listener != nil {
		opts = append(opts, WithListener(e.listener))
	}
	inv, err = NewSessionInventory(m, e.clock, opts...)
	if err != nil {
		return nil, err
	}
	e.sessions[sessionID] = inv
	e.log.Info("session inventory loaded",
		zap.String("session_id", sessionID),
		zap.Int("seats", m.Size()),
		zap.Int("sold", len(src.Sold)))
	return inv, nil
}

// loaded returns an inventory without loading it.
func (e *Engine) loaded(sessionID string) (*SessionInventory, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inv, ok := e.sessions[sessionID]
	return inv, ok
}

func (e *Engine) drop(sessionID string) {
	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()
}

func ended(m *SeatMap, now time.Time) bool {
	return !m.StartsAt().IsZero() && !now.Before(m.StartsAt())
}

// ArchiveEnded drops every session whose start time has passed and returns
// how many were dropped.  Issued tickets are unaffected.
func (e *Engine) ArchiveEnded() int {
	now := e.clock.Now()
	e.mu.Lock()
	var archived []string
	for id, inv := range e.sessions {
		if ended(inv.SeatMap(), now) {
			delete(e.sessions, id)
			archived = append(archived, id)
		}
	}
	e.mu.Unlock()

	for _, id := range archived {
		e.log.Info("session archived", zap.String("session_id", id))
	}
	return len(archived)
}

// ActiveSessions returns how many inventories are in memory.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// HoldStats reports hold expiry activity.
func (e *Engine) HoldStats() HoldManagerStats { return e.holds.Stats() }

// Start runs the hold expiry loop and the session archive ticker.
func (e *Engine) Start(ctx context.Context) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.running {
		return fmt.Errorf("engine already running")
	}
	if err := e.holds.Start(ctx); err != nil {
		return err
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.archiveLoop(ctx, e.stopCh)
	return nil
}

// Stop halts the background loops.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	if !e.running {
		e.loopMu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.loopMu.Unlock()

	e.wg.Wait()
	e.holds.Stop()
}

func (e *Engine) archiveLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ArchiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			e.ArchiveEnded()
		}
	}
}
