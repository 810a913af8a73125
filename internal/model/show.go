package model

import "time"

// Session is one scheduled occurrence of an event with its own seat grid.
// Seat prices default to BasePrice unless overridden per seat.
//
// Fields:
//  ID         – session identifier.
//  EventID    – catalog event this session belongs to.
//  Title      – event title, copied onto ticket notifications.
//  StartsAt   – session start; the inventory is archived after it.
//  Rows, Cols – grid dimensions.
//  BasePrice  – default seat price in cents.
type Session struct {
    ID        string    `json:"session_id"`
    EventID   string    `json:"event_id"`
    Title     string    `json:"title"`
    StartsAt  time.Time `json:"starts_at"`
    Rows      int       `json:"rows"`
    Cols      int       `json:"cols"`
    BasePrice int64     `json:"base_price"`
}
