package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// SessionHandler exposes the reservation engine over HTTP.  All routes are
// scoped to one session via the :id path parameter, and every route that
// changes seat state expects middleware.RequireHolder to have run.
type SessionHandler struct {
	Engine *reservation.Engine
	Clock  reservation.Clock // same clock as the engine; used for countdowns
	Log    *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.  The engine must be non-nil.
func NewSessionHandler(engine *reservation.Engine, clock reservation.Clock, log *zap.Logger) *SessionHandler {
	if engine == nil {
		panic("nil engine passed to NewSessionHandler")
	}
	if clock == nil {
		clock = reservation.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionHandler{Engine: engine, Clock: clock, Log: log}
}

// seatsReq is the body of claim, release and prepare requests.  Seats may be
// given as {"row":1,"col":2}, "1-2" or "A2".
type seatsReq struct {
	Seats []model.SeatID `json:"seats"`
}

type seatMapResp struct {
	SessionID string       `json:"session_id"`
	Version   uint64       `json:"version"`
	TakenAt   time.Time    `json:"taken_at"`
	Available int          `json:"available"`
	Held      int          `json:"held"`
	Sold      int          `json:"sold"`
	Seats     []model.Seat `json:"seats"`
	Mine      []string     `json:"mine,omitempty"`
}

// bindSeats decodes an optional seat list.  Bodies without a declared
// length are still read; only one that turns out empty means no seats.
func bindSeats(c echo.Context, body *seatsReq) error {
	if err := c.Bind(body); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// holdResp tells the client when its hold lapses and how often to renew.
type holdResp struct {
	model.Hold
	Labels           []string `json:"labels"`
	TTLSeconds       int64    `json:"ttl_seconds"`
	HeartbeatSeconds int64    `json:"heartbeat_seconds"`
}

func (h *SessionHandler) holdResp(hold model.Hold) holdResp {
	ttl := hold.ExpiresAt.Sub(h.Clock.Now())
	if ttl < 0 {
		ttl = 0
	}
	return holdResp{
		Hold:             hold,
		Labels:           labels(hold.SeatIDs),
		TTLSeconds:       int64(ttl / time.Second),
		HeartbeatSeconds: int64(h.Engine.HoldConfig().HeartbeatPeriod / time.Second),
	}
}

// GetSeatMap handles GET /v1/sessions/:id/seats.  Holder tokens of other
// callers are never exposed; the caller's own held seats are listed in
// "mine" when a holder is known.
func (h *SessionHandler) GetSeatMap(c echo.Context) error {
	snap, err := h.Engine.GetSeatMap(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := seatMapResp{
		SessionID: snap.SessionID,
		Version:   snap.Version,
		TakenAt:   snap.TakenAt,
		Available: snap.Count(model.SeatAvailable),
		Held:      snap.Count(model.SeatHeld),
		Sold:      snap.Count(model.SeatSold),
		Seats:     snap.Seats,
	}
	if holder := middleware.HolderFrom(c); holder != "" {
		for _, s := range snap.Seats {
			if s.Status == model.SeatHeld && s.HolderToken == holder {
				resp.Mine = append(resp.Mine, s.Label)
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Layout handles GET /v1/sessions/:id/layout: the immutable grid and prices.
func (h *SessionHandler) Layout(c echo.Context) error {
	layout, err := h.Engine.Layout(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, layout)
}

// ClaimSeats handles POST /v1/sessions/:id/holds.  The claim is all or
// nothing; a 409 lists the seats that blocked it.
func (h *SessionHandler) ClaimSeats(c echo.Context) error {
	var body seatsReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}
	hold, err := h.Engine.ClaimSeats(c.Request().Context(), c.Param("id"), middleware.HolderFrom(c), body.Seats)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, h.holdResp(hold))
}

// RenewHold handles PUT /v1/sessions/:id/holds, the client heartbeat.
func (h *SessionHandler) RenewHold(c echo.Context) error {
	hold, err := h.Engine.RenewHold(c.Request().Context(), c.Param("id"), middleware.HolderFrom(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, h.holdResp(hold))
}

// ReleaseSeats handles DELETE /v1/sessions/:id/holds.  Without a body, or
// with an empty seat list, the whole hold is released.  Seats can also be
// passed as ?seats=A1,A2.
func (h *SessionHandler) ReleaseSeats(c echo.Context) error {
	var body seatsReq
	if err := bindSeats(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if q := c.QueryParam("seats"); q != "" && len(body.Seats) == 0 {
		for _, raw := range strings.Split(q, ",") {
			id, err := model.ParseSeatID(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
			}
			body.Seats = append(body.Seats, id)
		}
	}
	released, err := h.Engine.ReleaseSeats(c.Request().Context(), c.Param("id"), middleware.HolderFrom(c), body.Seats)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": labels(released)})
}

// MyHold handles GET /v1/sessions/:id/holds/me so a reloaded page can
// resume its countdown.
func (h *SessionHandler) MyHold(c echo.Context) error {
	hold, ok, err := h.Engine.HoldOf(c.Request().Context(), c.Param("id"), middleware.HolderFrom(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no active hold"})
	}
	return c.JSON(http.StatusOK, h.holdResp(hold))
}

// PrepareCheckout handles POST /v1/sessions/:id/checkout/prepare.  When no
// seats are given the caller's whole hold is quoted.
func (h *SessionHandler) PrepareCheckout(c echo.Context) error {
	var body seatsReq
	if err := bindSeats(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	sessionID := c.Param("id")
	holder := middleware.HolderFrom(c)
	if len(body.Seats) == 0 {
		hold, ok, err := h.Engine.HoldOf(ctx, sessionID, holder)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		if !ok {
			return writeError(c, h.Log, &reservation.NotHolderError{})
		}
		body.Seats = hold.SeatIDs
	}
	quote, err := h.Engine.PrepareCheckout(ctx, sessionID, holder, body.Seats)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, quote)
}

// FinalizeCheckout handles POST /v1/sessions/:id/checkout/finalize.  The
// body is the quote returned by prepare; it is repriced and checked for
// expiry before the seats are sold.
func (h *SessionHandler) FinalizeCheckout(c echo.Context) error {
	var quote model.PriceQuote
	if err := c.Bind(&quote); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	sessionID := c.Param("id")
	if quote.SessionID == "" {
		quote.SessionID = sessionID
	}
	if len(quote.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quote has no seats"})
	}
	ticket, err := h.Engine.FinalizeCheckout(c.Request().Context(), sessionID, middleware.HolderFrom(c), quote)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"ticket":      ticket,
		"seat_labels": ticket.SeatLabels(),
	})
}
