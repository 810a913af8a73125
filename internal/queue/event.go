// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/seat-reservation-engine/internal/model"
    "github.com/iliyamo/seat-reservation-engine/internal/utils"
)

// TicketQueueName is the durable queue ticket events are published to.
const TicketQueueName = "ticket.issued"

// TicketIssuedEvent is published when a ticket has been stored.  It
// contains enough information for downstream consumers (reminders,
// calendar export, analytics) to act without querying the primary
// database.  The holder is carried as a fingerprint, never the raw token.
type TicketIssuedEvent struct {
    TicketID        string   `json:"ticket_id"`
    EventID         string   `json:"event_id"`
    SessionID       string   `json:"session_id"`
    Holder          string   `json:"holder"`
    Title           string   `json:"title"`
    StartsAt        string   `json:"starts_at"`
    SeatLabels      []string `json:"seats"`
    TotalPriceCents int64    `json:"total_price_cents"`
    IssuedAt        string   `json:"issued_at"`
}

// NewTicketIssuedEvent builds the event for a stored ticket of session s.
func NewTicketIssuedEvent(t model.Ticket, s model.Session) TicketIssuedEvent {
    ev := TicketIssuedEvent{
        TicketID:        t.ID,
        EventID:         t.EventID,
        SessionID:       t.SessionID,
        Holder:          utils.Fingerprint(t.HolderToken),
        Title:           s.Title,
        SeatLabels:      t.SeatLabels(),
        TotalPriceCents: t.TotalPrice,
        IssuedAt:        t.IssuedAt.UTC().Format(time.RFC3339),
    }
    if !s.StartsAt.IsZero() {
        ev.StartsAt = s.StartsAt.UTC().Format(time.RFC3339)
    }
    return ev
}
