package model

import "time"

// Ticket is the immutable record produced by a successful checkout.
// Once handed to the ticket store it is never modified.
type Ticket struct {
    ID          string    `json:"ticket_id"`
    EventID     string    `json:"event_id"`
    SessionID   string    `json:"session_id"`
    HolderToken string    `json:"-"`
    SeatIDs     []SeatID  `json:"seats"`
    TotalPrice  int64     `json:"total_price"`
    IssuedAt    time.Time `json:"issued_at"`
}

// SeatLabels returns the printable labels of the ticket's seats in order.
func (t Ticket) SeatLabels() []string {
    labels := make([]string, len(t.SeatIDs))
    for i, id := range t.SeatIDs {
        labels[i] = id.Label()
    }
    return labels
}

// PriceLine is the price of one seat inside a quote.
type PriceLine struct {
    SeatID SeatID `json:"seat"`
    Label  string `json:"label"`
    Price  int64  `json:"price"`
}

// PriceQuote is a priced, time-bounded snapshot of a hold's cost.  It is
// valid only while the hold it was computed from is valid: ExpiresAt is
// the hold's expiry at the time the quote was issued.
type PriceQuote struct {
    SessionID   string      `json:"session_id"`
    HolderToken string      `json:"-"`
    SeatIDs     []SeatID    `json:"seats"`
    Lines       []PriceLine `json:"lines,omitempty"`
    TotalPrice  int64       `json:"total_price"`
    IssuedAt    time.Time   `json:"issued_at"`
    ExpiresAt   time.Time   `json:"expires_at"`
}
