package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/iliyamo/seat-reservation-engine/internal/model"
    "github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// SessionRepo loads session grids and seat prices from MySQL.  It
// implements reservation.SeatMapLoader; seats already present in
// ticket_seats are reported as sold.
type SessionRepo struct {
    db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// LoadSession reads one session with its price overrides and sold seats.
// Unknown ids yield reservation.ErrSessionNotFound.
func (r *SessionRepo) LoadSession(ctx context.Context, sessionID string) (reservation.SessionSource, error) {
    const q = `SELECT id, event_id, title, starts_at, seat_rows, seat_cols, base_price_cents
               FROM sessions WHERE id = ?`
    var s model.Session
    err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
        &s.ID, &s.EventID, &s.Title, &s.StartsAt, &s.Rows, &s.Cols, &s.BasePrice,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return reservation.SessionSource{}, fmt.Errorf("%w: %s", reservation.ErrSessionNotFound, sessionID)
    }
    if err != nil {
        return reservation.SessionSource{}, err
    }
    s.StartsAt = s.StartsAt.UTC()

    overrides, err := r.priceOverrides(ctx, sessionID)
    if err != nil {
        return reservation.SessionSource{}, err
    }
    sold, err := soldSeats(ctx, r.db, sessionID)
    if err != nil {
        return reservation.SessionSource{}, err
    }
    return reservation.SessionSource{Session: s, PriceOverrides: overrides, Sold: sold}, nil
}

func (r *SessionRepo) priceOverrides(ctx context.Context, sessionID string) (map[model.SeatID]int64, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT seat_row, seat_col, price_cents FROM session_seat_prices WHERE session_id = ?`,
        sessionID,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := map[model.SeatID]int64{}
    for rows.Next() {
        var id model.SeatID
        var price int64
        if err := rows.Scan(&id.Row, &id.Col, &price); err != nil {
            return nil, err
        }
        out[id] = price
    }
    return out, rows.Err()
}

// Upsert creates or updates a session definition.  Used to seed demo
// sessions on an empty database.
func (r *SessionRepo) Upsert(ctx context.Context, s model.Session) error {
    const q = `INSERT INTO sessions (id, event_id, title, starts_at, seat_rows, seat_cols, base_price_cents)
               VALUES (?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE event_id = VALUES(event_id), title = VALUES(title),
                   starts_at = VALUES(starts_at), seat_rows = VALUES(seat_rows),
                   seat_cols = VALUES(seat_cols), base_price_cents = VALUES(base_price_cents)`
    _, err := r.db.ExecContext(ctx, q, s.ID, s.EventID, s.Title, s.StartsAt.UTC(), s.Rows, s.Cols, s.BasePrice)
    if err != nil {
        return fmt.Errorf("upsert session %s: %w", s.ID, err)
    }
    return nil
}
