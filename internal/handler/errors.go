package handler // declare the package name; contains HTTP handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// labels renders seat ids the way they are printed on tickets.
func labels(ids []model.SeatID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Label()
	}
	return out
}

// writeError translates engine errors into JSON responses.  Seat level
// errors carry the affected seats so clients can refresh just those.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var (
		conflict  *reservation.ConflictError
		notHolder *reservation.NotHolderError
		expired   *reservation.ExpiredError
		persist   *reservation.PersistenceError
	)
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats_unavailable", "seats": labels(conflict.Seats)})
	case errors.As(err, &notHolder):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not_holder", "seats": labels(notHolder.Seats)})
	case errors.As(err, &expired):
		return c.JSON(http.StatusGone, echo.Map{
			"error":      "hold_expired",
			"seats":      labels(expired.Seats),
			"expired_at": expired.ExpiredAt.UTC().Format(time.RFC3339),
		})
	case errors.As(err, &persist):
		log.Error("checkout persistence failure", zap.String("ticket_id", persist.TicketID), zap.Error(persist.Err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "ticket_not_saved", "message": "seats were returned, please retry"})
	case errors.Is(err, reservation.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session_not_found"})
	case errors.Is(err, reservation.ErrSessionEnded):
		return c.JSON(http.StatusGone, echo.Map{"error": "session_ended"})
	case errors.Is(err, reservation.ErrQuoteMismatch):
		return c.JSON(http.StatusConflict, echo.Map{"error": "quote_mismatch", "message": err.Error()})
	case errors.Is(err, reservation.ErrUnknownSeat),
		errors.Is(err, reservation.ErrNoSeats),
		errors.Is(err, reservation.ErrSessionMismatch),
		errors.Is(err, reservation.ErrNoHolder):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
