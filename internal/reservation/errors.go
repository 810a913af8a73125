// Package reservation implements the seat inventory and reservation engine:
// per-session seat state, time-bounded holds, pricing and checkout.
package reservation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

var (
	// ErrSessionNotFound is returned when no seat map exists for a session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionEnded is returned for sessions whose start time has passed.
	ErrSessionEnded = errors.New("session has already started")
	// ErrUnknownSeat is returned when a seat id lies outside the session grid.
	ErrUnknownSeat = errors.New("seat is not part of the session")
	// ErrNoSeats is returned when an operation requires at least one seat.
	ErrNoSeats = errors.New("no seats requested")
	// ErrSessionMismatch is returned when a quote is presented to another session.
	ErrSessionMismatch = errors.New("quote belongs to a different session")
)

// ConflictError reports the requested seats that blocked a claim or commit.
// The caller should refresh the seat map and let the user pick again.
type ConflictError struct {
	Seats []model.SeatID
}

func (e *ConflictError) Error() string {
	return "seats unavailable: " + joinSeats(e.Seats)
}

// NotHolderError reports seats the caller's token does not (or no longer)
// hold.  It indicates stale client state.
type NotHolderError struct {
	Seats []model.SeatID
}

func (e *NotHolderError) Error() string {
	if len(e.Seats) == 0 {
		return "no active hold for holder"
	}
	return "seats not held by caller: " + joinSeats(e.Seats)
}

// ExpiredError reports that the hold backing a commit or quote lapsed.
// The caller must restart the claim flow.
type ExpiredError struct {
	Seats     []model.SeatID
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("hold expired at %s", e.ExpiredAt.UTC().Format(time.RFC3339))
}

// PersistenceError reports a ticket store failure after a successful seat
// commit.  The seats have already been returned to available.
type PersistenceError struct {
	TicketID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist ticket %s: %v", e.TicketID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotHolder reports whether err is a *NotHolderError.
func IsNotHolder(err error) bool {
	var ne *NotHolderError
	return errors.As(err, &ne)
}

// IsExpired reports whether err is an *ExpiredError.
func IsExpired(err error) bool {
	var ee *ExpiredError
	return errors.As(err, &ee)
}

func joinSeats(ids []model.SeatID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
