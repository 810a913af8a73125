package reservation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// ErrNoHolder is returned when an operation is attempted without a holder token.
var ErrNoHolder = errors.New("holder token is required")

// Change reasons reported to listeners.
const (
	ReasonClaimed    = "claimed"
	ReasonReleased   = "released"
	ReasonExpired    = "expired"
	ReasonSold       = "sold"
	ReasonRolledBack = "rolled_back"
)

// SeatChange describes one state transition applied to a group of seats.
type SeatChange struct {
	SessionID string           `json:"session_id"`
	Seats     []model.SeatID   `json:"seats"`
	Status    model.SeatStatus `json:"status"`
	Reason    string           `json:"reason"`
	Version   uint64           `json:"version"`
}

// Listener receives seat changes after they have been applied.  It is
// called outside the inventory lock and must not block for long.
type Listener interface {
	SeatsChanged(change SeatChange)
}

type seatState struct {
	status    model.SeatStatus
	holder    string
	expiresAt time.Time
}

type holdRecord struct {
	id        string
	token     string
	seats     map[model.SeatID]struct{}
	createdAt time.Time
	expiresAt time.Time
}

func (h *holdRecord) view(sessionID string) model.Hold {
	ids := make([]model.SeatID, 0, len(h.seats))
	for id := range h.seats {
		ids = append(ids, id)
	}
	sortSeats(ids)
	return model.Hold{
		ID:          h.id,
		SessionID:   sessionID,
		HolderToken: h.token,
		SeatIDs:     ids,
		CreatedAt:   h.createdAt,
		ExpiresAt:   h.expiresAt,
	}
}

// Snapshot is a consistent, read-only view of every seat of a session.
type Snapshot struct {
	SessionID string       `json:"session_id"`
	Version   uint64       `json:"version"`
	TakenAt   time.Time    `json:"taken_at"`
	Seats     []model.Seat `json:"seats"`
}

// Count returns the number of seats in the given status.
func (s Snapshot) Count(status model.SeatStatus) int {
	n := 0
	for _, seat := range s.Seats {
		if seat.Status == status {
			n++
		}
	}
	return n
}

// Seat looks up one seat of the snapshot.
func (s Snapshot) Seat(id model.SeatID) (model.Seat, bool) {
	for _, seat := range s.Seats {
		if seat.ID == id {
			return seat, true
		}
	}
	return model.Seat{}, false
}

// InventoryOption configures a SessionInventory.
type InventoryOption func(*SessionInventory)

// WithListener registers a listener for seat changes.
func WithListener(l Listener) InventoryOption {
	return func(inv *SessionInventory) { inv.listener = l }
}

// WithSoldSeats seeds seats that were sold before the inventory was
// created, e.g. tickets already present in the ticket store.
func WithSoldSeats(ids []model.SeatID) InventoryOption {
	return func(inv *SessionInventory) { inv.presold = ids }
}

// WithIDGenerator overrides how hold ids are generated.
func WithIDGenerator(fn func() string) InventoryOption {
	return func(inv *SessionInventory) { inv.newID = fn }
}

// SessionInventory is the authoritative store of seat state for one
// session and the only component that mutates it.  A single mutex guards
// every seat of the session: a claim checks and sets its whole seat group
// while holding it, so callers racing for an overlapping seat are strictly
// serialized and the loser sees a ConflictError.
type SessionInventory struct {
	seatMap  *SeatMap
	clock    Clock
	listener Listener
	newID    func() string
	presold  []model.SeatID

	mu      sync.Mutex
	seats   []seatState
	holds   map[string]*holdRecord // by holder token
	version uint64
}

// NewSessionInventory creates an inventory with every seat available,
// except seats passed through WithSoldSeats.
func NewSessionInventory(m *SeatMap, clock Clock, opts ...InventoryOption) (*SessionInventory, error) {
	if m == nil {
		return nil, fmt.Errorf("inventory: nil seat map")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	inv := &SessionInventory{
		seatMap: m,
		clock:   clock,
		newID:   uuid.NewString,
		seats:   make([]seatState, m.Size()),
		holds:   make(map[string]*holdRecord),
	}
	for _, opt := range opts {
		opt(inv)
	}
	for i := range inv.seats {
		inv.seats[i] = seatState{status: model.SeatAvailable}
	}
	for _, id := range inv.presold {
		if !m.Contains(id) {
			return nil, fmt.Errorf("inventory %s: %w: %s", m.SessionID(), ErrUnknownSeat, id)
		}
		inv.seats[m.index(id)] = seatState{status: model.SeatSold}
	}
	inv.presold = nil
	return inv, nil
}

// SeatMap returns the immutable layout backing the inventory.
func (inv *SessionInventory) SeatMap() *SeatMap { return inv.seatMap }

// SessionID returns the session the inventory belongs to.
func (inv *SessionInventory) SessionID() string { return inv.seatMap.SessionID() }

// Version returns the current mutation counter.
func (inv *SessionInventory) Version() uint64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.version
}

// Claim moves every requested seat from available to held by holderToken
// for ttl.  The claim is all-or-nothing: when any seat is held by another
// live token or sold, a ConflictError listing the blocking seats is
// returned and nothing changes.  Seats already held by the same token are
// renewed; the caller keeps a single hold whose expiry moves to now+ttl.
func (inv *SessionInventory) Claim(holderToken string, ids []model.SeatID, ttl time.Duration) (model.Hold, error) {
	if holderToken == "" {
		return model.Hold{}, ErrNoHolder
	}
	if ttl <= 0 {
		return model.Hold{}, fmt.Errorf("claim: non-positive ttl %s", ttl)
	}
	ids, err := inv.seatMap.normalize(ids)
	if err != nil {
		return model.Hold{}, err
	}
	now := inv.clock.Now()

	inv.mu.Lock()
	changes := inv.reapLocked(now)

	var blocking []model.SeatID
	for _, id := range ids {
		st := inv.seats[inv.seatMap.index(id)]
		switch st.status {
		case model.SeatAvailable:
		case model.SeatHeld:
			if st.holder != holderToken {
				blocking = append(blocking, id)
			}
		default:
			blocking = append(blocking, id)
		}
	}
	if len(blocking) > 0 {
		inv.unlockAndNotify(changes)
		return model.Hold{}, &ConflictError{Seats: blocking}
	}

	h, ok := inv.holds[holderToken]
	if !ok {
		h = &holdRecord{
			id:        inv.newID(),
			token:     holderToken,
			seats:     make(map[model.SeatID]struct{}, len(ids)),
			createdAt: now,
		}
		inv.holds[holderToken] = h
	}
	var claimed []model.SeatID
	for _, id := range ids {
		if inv.seats[inv.seatMap.index(id)].status == model.SeatAvailable {
			claimed = append(claimed, id)
		}
		h.seats[id] = struct{}{}
	}
	inv.extendLocked(h, now.Add(ttl))
	inv.version++
	if len(claimed) > 0 {
		changes = append(changes, inv.change(claimed, model.SeatHeld, ReasonClaimed))
	}
	hold := h.view(inv.SessionID())
	inv.unlockAndNotify(changes)
	return hold, nil
}

// Renew extends the caller's hold to now+ttl.  With no ids the whole hold
// is renewed; otherwise every id must still belong to the caller's hold,
// else a NotHolderError lists the seats it no longer owns.
func (inv *SessionInventory) Renew(holderToken string, ids []model.SeatID, ttl time.Duration) (model.Hold, error) {
	if holderToken == "" {
		return model.Hold{}, ErrNoHolder
	}
	if ttl <= 0 {
		return model.Hold{}, fmt.Errorf("renew: non-positive ttl %s", ttl)
	}
	if len(ids) > 0 {
		var err error
		if ids, err = inv.seatMap.normalize(ids); err != nil {
			return model.Hold{}, err
		}
	}
	now := inv.clock.Now()

	inv.mu.Lock()
	changes := inv.reapLocked(now)
	h, ok := inv.holds[holderToken]
	if !ok {
		inv.unlockAndNotify(changes)
		return model.Hold{}, &NotHolderError{Seats: ids}
	}
	var missing []model.SeatID
	for _, id := range ids {
		if _, held := h.seats[id]; !held {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		inv.unlockAndNotify(changes)
		return model.Hold{}, &NotHolderError{Seats: missing}
	}
	inv.extendLocked(h, now.Add(ttl))
	inv.version++
	hold := h.view(inv.SessionID())
	inv.unlockAndNotify(changes)
	return hold, nil
}

// Release returns seats held by holderToken to available.  Seats that are
// already available are skipped.  Seats held by another token or sold
// cause a NotHolderError and nothing is released.  With no ids the
// caller's whole hold is released.  The released seats are returned.
func (inv *SessionInventory) Release(holderToken string, ids []model.SeatID) ([]model.SeatID, error) {
	if holderToken == "" {
		return nil, ErrNoHolder
	}
	if len(ids) > 0 {
		var err error
		if ids, err = inv.seatMap.normalize(ids); err != nil {
			return nil, err
		}
	}
	now := inv.clock.Now()

	inv.mu.Lock()
	changes := inv.reapLocked(now)
	if len(ids) == 0 {
		if h, ok := inv.holds[holderToken]; ok {
			ids = h.view(inv.SessionID()).SeatIDs
		}
	}
	var release, foreign []model.SeatID
	for _, id := range ids {
		st := inv.seats[inv.seatMap.index(id)]
		switch {
		case st.status == model.SeatAvailable:
		case st.status == model.SeatHeld && st.holder == holderToken:
			release = append(release, id)
		default:
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		inv.unlockAndNotify(changes)
		return nil, &NotHolderError{Seats: foreign}
	}
	if len(release) > 0 {
		h := inv.holds[holderToken]
		for _, id := range release {
			inv.setAvailable(id)
			delete(h.seats, id)
		}
		if len(h.seats) == 0 {
			delete(inv.holds, holderToken)
		}
		inv.version++
		changes = append(changes, inv.change(release, model.SeatAvailable, ReasonReleased))
	}
	inv.unlockAndNotify(changes)
	return release, nil
}

// Commit moves the given seats from held by holderToken to sold.  It
// fails without changing any seat when the caller's hold on them has
// expired (ExpiredError) or when any seat is not held by the caller
// (ConflictError).  Committed seats leave the hold; an emptied hold is
// deleted.
func (inv *SessionInventory) Commit(holderToken string, ids []model.SeatID) error {
	if holderToken == "" {
		return ErrNoHolder
	}
	ids, err := inv.seatMap.normalize(ids)
	if err != nil {
		return err
	}
	now := inv.clock.Now()

	inv.mu.Lock()
	var expired []model.SeatID
	var expiredAt time.Time
	for _, id := range ids {
		st := inv.seats[inv.seatMap.index(id)]
		if st.status == model.SeatHeld && st.holder == holderToken && !now.Before(st.expiresAt) {
			expired = append(expired, id)
			expiredAt = st.expiresAt
		}
	}
	changes := inv.reapLocked(now)
	if len(expired) > 0 {
		inv.unlockAndNotify(changes)
		return &ExpiredError{Seats: expired, ExpiredAt: expiredAt}
	}
	var blocking []model.SeatID
	for _, id := range ids {
		st := inv.seats[inv.seatMap.index(id)]
		if st.status != model.SeatHeld || st.holder != holderToken {
			blocking = append(blocking, id)
		}
	}
	if len(blocking) > 0 {
		inv.unlockAndNotify(changes)
		return &ConflictError{Seats: blocking}
	}
	h := inv.holds[holderToken]
	for _, id := range ids {
		inv.setSold(id)
		delete(h.seats, id)
	}
	if len(h.seats) == 0 {
		delete(inv.holds, holderToken)
	}
	inv.version++
	changes = append(changes, inv.change(ids, model.SeatSold, ReasonSold))
	inv.unlockAndNotify(changes)
	return nil
}

// revert undoes a commit whose ticket could not be persisted: sold seats
// return to available.  It is the only transition out of sold.
func (inv *SessionInventory) revert(ids []model.SeatID) []model.SeatID {
	inv.mu.Lock()
	var reverted []model.SeatID
	for _, id := range ids {
		if !inv.seatMap.Contains(id) {
			continue
		}
		if inv.seats[inv.seatMap.index(id)].status == model.SeatSold {
			inv.setAvailable(id)
			reverted = append(reverted, id)
		}
	}
	var changes []SeatChange
	if len(reverted) > 0 {
		inv.version++
		changes = append(changes, inv.change(reverted, model.SeatAvailable, ReasonRolledBack))
	}
	inv.unlockAndNotify(changes)
	return reverted
}

// HoldOf returns the caller's live hold, if any.
func (inv *SessionInventory) HoldOf(holderToken string) (model.Hold, bool) {
	now := inv.clock.Now()
	inv.mu.Lock()
	changes := inv.reapLocked(now)
	h, ok := inv.holds[holderToken]
	var hold model.Hold
	if ok {
		hold = h.view(inv.SessionID())
	}
	inv.unlockAndNotify(changes)
	return hold, ok
}

// Reap reclaims every overdue hold and returns how many were released.
func (inv *SessionInventory) Reap() int {
	now := inv.clock.Now()
	inv.mu.Lock()
	changes := inv.reapLocked(now)
	n := len(changes)
	inv.unlockAndNotify(changes)
	return n
}

// Snapshot returns every seat in row-major order together with the
// version it reflects.
func (inv *SessionInventory) Snapshot() Snapshot {
	now := inv.clock.Now()
	inv.mu.Lock()
	changes := inv.reapLocked(now)
	snap := Snapshot{
		SessionID: inv.SessionID(),
		Version:   inv.version,
		TakenAt:   now,
		Seats:     make([]model.Seat, len(inv.seats)),
	}
	for i, st := range inv.seats {
		id := inv.seatMap.SeatID(i)
		checkSeat(id, st)
		seat := model.Seat{
			ID:          id,
			Label:       id.Label(),
			BasePrice:   inv.seatMap.prices[i],
			Status:      st.status,
			HolderToken: st.holder,
		}
		if st.status == model.SeatHeld {
			exp := st.expiresAt
			seat.HoldExpiresAt = &exp
		}
		snap.Seats[i] = seat
	}
	inv.unlockAndNotify(changes)
	return snap
}

// reapLocked releases every hold whose expiry is not after now.  Overdue
// holds are treated as already released before any new request is
// evaluated against their seats.
func (inv *SessionInventory) reapLocked(now time.Time) []SeatChange {
	var changes []SeatChange
	for token, h := range inv.holds {
		if now.Before(h.expiresAt) {
			continue
		}
		ids := h.view(inv.SessionID()).SeatIDs
		for _, id := range ids {
			inv.setAvailable(id)
		}
		delete(inv.holds, token)
		inv.version++
		changes = append(changes, inv.change(ids, model.SeatAvailable, ReasonExpired))
	}
	return changes
}

func (inv *SessionInventory) extendLocked(h *holdRecord, expiresAt time.Time) {
	h.expiresAt = expiresAt
	for id := range h.seats {
		i := inv.seatMap.index(id)
		inv.seats[i] = seatState{status: model.SeatHeld, holder: h.token, expiresAt: expiresAt}
		checkSeat(id, inv.seats[i])
	}
}

func (inv *SessionInventory) setAvailable(id model.SeatID) {
	inv.seats[inv.seatMap.index(id)] = seatState{status: model.SeatAvailable}
}

func (inv *SessionInventory) setSold(id model.SeatID) {
	inv.seats[inv.seatMap.index(id)] = seatState{status: model.SeatSold}
}

func (inv *SessionInventory) change(ids []model.SeatID, status model.SeatStatus, reason string) SeatChange {
	return SeatChange{
		SessionID: inv.SessionID(),
		Seats:     ids,
		Status:    status,
		Reason:    reason,
		Version:   inv.version,
	}
}

func (inv *SessionInventory) unlockAndNotify(changes []SeatChange) {
	inv.mu.Unlock()
	if inv.listener == nil {
		return
	}
	for _, c := range changes {
		inv.listener.SeatsChanged(c)
	}
}

// checkSeat panics on a corrupted seat.  These states cannot be produced
// through the public API.
func checkSeat(id model.SeatID, st seatState) {
	switch st.status {
	case model.SeatAvailable, model.SeatSold:
		if st.holder != "" {
			panic(fmt.Sprintf("reservation: seat %s is %s with holder token", id, st.status))
		}
	case model.SeatHeld:
		if st.holder == "" || st.expiresAt.IsZero() {
			panic(fmt.Sprintf("reservation: seat %s is held without holder", id))
		}
	default:
		panic(fmt.Sprintf("reservation: seat %s has unknown status %q", id, st.status))
	}
}
