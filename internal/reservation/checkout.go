package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/utils"
)

// ErrQuoteMismatch is returned when a presented quote does not match the
// current price of its seats.
var ErrQuoteMismatch = errors.New("quote total does not match seat prices")

// TicketStore persists issued tickets.  Insert must be atomic: either the
// whole ticket is stored or nothing is.
type TicketStore interface {
	Insert(ctx context.Context, t model.Ticket) error
}

// TicketPublisher announces issued tickets to downstream consumers such
// as reminders and calendar export.  Publishing is best effort.
type TicketPublisher interface {
	PublishTicketIssued(ctx context.Context, t model.Ticket, session model.Session) error
}

// CheckoutOption configures a CheckoutCoordinator.
type CheckoutOption func(*CheckoutCoordinator)

// WithPublisher sets the publisher notified after a ticket is stored.
func WithPublisher(p TicketPublisher) CheckoutOption {
	return func(c *CheckoutCoordinator) { c.publisher = p }
}

// WithTicketIDGenerator overrides ticket id generation.
func WithTicketIDGenerator(fn func() string) CheckoutOption {
	return func(c *CheckoutCoordinator) { c.newID = fn }
}

// CheckoutCoordinator turns a live hold into a ticket in two phases so
// that an external payment step can run between them: Prepare prices the
// hold into a quote, Finalize commits the seats and stores the ticket.
type CheckoutCoordinator struct {
	store     TicketStore
	publisher TicketPublisher
	clock     Clock
	newID     func() string
	log       *zap.Logger
}

// NewCheckoutCoordinator creates a coordinator writing to store.
func NewCheckoutCoordinator(store TicketStore, clock Clock, log *zap.Logger, opts ...CheckoutOption) *CheckoutCoordinator {
	if store == nil {
		panic("nil ticket store passed to NewCheckoutCoordinator")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &CheckoutCoordinator{
		store: store,
		clock: clock,
		newID: uuid.NewString,
		log:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prepare validates that holderToken holds ids and returns a quote that
// expires together with the hold.
func (c *CheckoutCoordinator) Prepare(ctx context.Context, inv *SessionInventory, holderToken string, ids []model.SeatID) (model.PriceQuote, error) {
	if holderToken == "" {
		return model.PriceQuote{}, ErrNoHolder
	}
	ids, err := inv.SeatMap().normalize(ids)
	if err != nil {
		return model.PriceQuote{}, err
	}
	hold, ok := inv.HoldOf(holderToken)
	if !ok {
		return model.PriceQuote{}, &NotHolderError{Seats: ids}
	}
	held := make(map[model.SeatID]struct{}, len(hold.SeatIDs))
	for _, id := range hold.SeatIDs {
		held[id] = struct{}{}
	}
	var missing []model.SeatID
	for _, id := range ids {
		if _, ok := held[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return model.PriceQuote{}, &NotHolderError{Seats: missing}
	}

	lines, err := NewPricingEngine(inv.SeatMap()).Breakdown(ids)
	if err != nil {
		return model.PriceQuote{}, err
	}
	var total int64
	for _, l := range lines {
		total += l.Price
	}
	return model.PriceQuote{
		SessionID:   inv.SessionID(),
		HolderToken: holderToken,
		SeatIDs:     ids,
		Lines:       lines,
		TotalPrice:  total,
		IssuedAt:    c.clock.Now(),
		ExpiresAt:   hold.ExpiresAt,
	}, nil
}

// Finalize commits the quoted seats and stores a ticket for them.  A quote
// past its expiry yields an ExpiredError even when the caller still has
// it.  When the ticket store fails, the seats are returned to available
// and a PersistenceError is returned.
func (c *CheckoutCoordinator) Finalize(ctx context.Context, inv *SessionInventory, holderToken string, quote model.PriceQuote) (model.Ticket, error) {
	if holderToken == "" {
		return model.Ticket{}, ErrNoHolder
	}
	if quote.SessionID != inv.SessionID() {
		return model.Ticket{}, ErrSessionMismatch
	}
	if quote.HolderToken != "" && quote.HolderToken != holderToken {
		return model.Ticket{}, &NotHolderError{Seats: quote.SeatIDs}
	}
	ids, err := inv.SeatMap().normalize(quote.SeatIDs)
	if err != nil {
		return model.Ticket{}, err
	}
	now := c.clock.Now()
	if !now.Before(quote.ExpiresAt) {
		return model.Ticket{}, &ExpiredError{Seats: ids, ExpiredAt: quote.ExpiresAt}
	}
	total, err := NewPricingEngine(inv.SeatMap()).Price(ids)
	if err != nil {
		return model.Ticket{}, err
	}
	if total != quote.TotalPrice {
		return model.Ticket{}, fmt.Errorf("%w: quoted %d, current %d", ErrQuoteMismatch, quote.TotalPrice, total)
	}

	if err := inv.Commit(holderToken, ids); err != nil {
		return model.Ticket{}, err
	}

	ticket := model.Ticket{
		ID:          c.newID(),
		EventID:     inv.SeatMap().EventID(),
		SessionID:   inv.SessionID(),
		HolderToken: holderToken,
		SeatIDs:     ids,
		TotalPrice:  total,
		IssuedAt:    now,
	}
	if err := c.store.Insert(ctx, ticket); err != nil {
		reverted := inv.revert(ids)
		c.log.Error("ticket insert failed, seats returned to inventory",
			zap.String("session_id", ticket.SessionID),
			zap.String("ticket_id", ticket.ID),
			zap.String("holder", utils.Fingerprint(holderToken)),
			zap.Int("reverted", len(reverted)),
			zap.Error(err))
		return model.Ticket{}, &PersistenceError{TicketID: ticket.ID, Err: err}
	}

	c.log.Info("ticket issued",
		zap.String("session_id", ticket.SessionID),
		zap.String("ticket_id", ticket.ID),
		zap.String("holder", utils.Fingerprint(holderToken)),
		zap.Int("seats", len(ids)),
		zap.Int64("total", total))

	if c.publisher != nil {
		if err := c.publisher.PublishTicketIssued(ctx, ticket, inv.SeatMap().Session()); err != nil {
			c.log.Warn("publish ticket issued failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return ticket, nil
}
