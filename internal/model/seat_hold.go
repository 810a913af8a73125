package model

import "time"

// Hold represents a temporary, token-scoped reservation of one or more
// seats during the checkout process.  Holds prevent concurrent claims
// from grabbing the same seats while a caller is still choosing.  There
// is at most one hold per holder token and session; claiming more seats
// with the same token grows the existing hold.
//
// Fields:
//  ID          – opaque identifier returned to the client.
//  SessionID   – session whose seats are held.
//  HolderToken – caller identity (browser session, user); not a credential.
//  SeatIDs     – held seats, row-major.
//  CreatedAt   – when the hold was first created.
//  ExpiresAt   – when the hold lapses unless renewed or committed.
type Hold struct {
    ID          string    `json:"hold_id"`
    SessionID   string    `json:"session_id"`
    HolderToken string    `json:"-"`
    SeatIDs     []SeatID  `json:"seats"`
    CreatedAt   time.Time `json:"created_at"`
    ExpiresAt   time.Time `json:"expires_at"`
}
