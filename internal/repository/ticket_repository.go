package repository

import (
    "context"
    "database/sql"
    "fmt"
    "strings"

    "github.com/iliyamo/seat-reservation-engine/internal/model"
)

// TicketRepo persists issued tickets in the tickets and ticket_seats
// tables.  A ticket and all of its seats are written in one transaction,
// so a ticket row never exists without its seats.  The unique key on
// (session_id, seat_row, seat_col) makes the database refuse a second
// ticket for an already sold seat.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// Insert stores a ticket atomically.  A duplicate seat or ticket id is
// reported as ErrConflict.
func (r *TicketRepo) Insert(ctx context.Context, t model.Ticket) (err error) {
    if t.SessionID == "" {
        return fmt.Errorf("insert ticket %s: empty session id", t.ID)
    }
    if len(t.SeatIDs) == 0 {
        return fmt.Errorf("insert ticket %s: no seats", t.ID)
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    defer func() {
        if err != nil {
            _ = tx.Rollback()
        }
    }()

    const q = `INSERT INTO tickets (id, event_id, session_id, holder_token, total_price_cents, issued_at) VALUES (?, ?, ?, ?, ?, ?)`
    if _, err = tx.ExecContext(ctx, q, t.ID, t.EventID, t.SessionID, t.HolderToken, t.TotalPrice, t.IssuedAt.UTC()); err != nil {
        return wrapWrite(t.ID, err)
    }

    // Build a single multi-row insert for the seats.
    var sb strings.Builder
    sb.WriteString(`INSERT INTO ticket_seats (ticket_id, session_id, seat_row, seat_col) VALUES `)
    args := make([]interface{}, 0, len(t.SeatIDs)*4)
    for i, id := range t.SeatIDs {
        if i > 0 {
            sb.WriteString(",")
        }
        sb.WriteString("(?, ?, ?, ?)")
        args = append(args, t.ID, t.SessionID, id.Row, id.Col)
    }
    if _, err = tx.ExecContext(ctx, sb.String(), args...); err != nil {
        return wrapWrite(t.ID, err)
    }
    return tx.Commit()
}

func wrapWrite(ticketID string, err error) error {
    if isDuplicate(err) {
        return fmt.Errorf("insert ticket %s: %w", ticketID, ErrConflict)
    }
    return fmt.Errorf("insert ticket %s: %w", ticketID, err)
}

// soldSeats returns every seat of a session that belongs to a ticket.
// It seeds a freshly loaded inventory so a restarted server never sells
// the same seat twice.
func soldSeats(ctx context.Context, db *sql.DB, sessionID string) ([]model.SeatID, error) {
    rows, err := db.QueryContext(ctx,
        `SELECT seat_row, seat_col FROM ticket_seats WHERE session_id = ? ORDER BY seat_row, seat_col`,
        sessionID,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.SeatID
    for rows.Next() {
        var id model.SeatID
        if err := rows.Scan(&id.Row, &id.Col); err != nil {
            return nil, err
        }
        out = append(out, id)
    }
    return out, rows.Err()
}

// ListByHolder returns the holder's tickets, newest first, each with its
// seats in row-major order.
func (r *TicketRepo) ListByHolder(ctx context.Context, holder string) ([]model.Ticket, error) {
    const q = `SELECT t.id, t.event_id, t.session_id, t.total_price_cents, t.issued_at, s.seat_row, s.seat_col
               FROM tickets t
               JOIN ticket_seats s ON s.ticket_id = t.id
               WHERE t.holder_token = ?
               ORDER BY t.issued_at DESC, t.id, s.seat_row, s.seat_col`
    rows, err := r.db.QueryContext(ctx, q, holder)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Ticket
    for rows.Next() {
        var t model.Ticket
        var id model.SeatID
        if err := rows.Scan(&t.ID, &t.EventID, &t.SessionID, &t.TotalPrice, &t.IssuedAt, &id.Row, &id.Col); err != nil {
            return nil, err
        }
        // Rows of one ticket are adjacent; start a new ticket when the id changes.
        if n := len(out); n > 0 && out[n-1].ID == t.ID {
            out[n-1].SeatIDs = append(out[n-1].SeatIDs, id)
            continue
        }
        t.HolderToken = holder
        t.IssuedAt = t.IssuedAt.UTC()
        t.SeatIDs = []model.SeatID{id}
        out = append(out, t)
    }
    return out, rows.Err()
}
