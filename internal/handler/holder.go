package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
	"github.com/iliyamo/seat-reservation-engine/internal/model"
	"github.com/iliyamo/seat-reservation-engine/internal/utils"
)

// TicketLister is implemented by ticket stores that can list a holder's
// tickets.
type TicketLister interface {
	ListByHolder(ctx context.Context, holder string) ([]model.Ticket, error)
}

// HolderHandler mints anonymous holder tokens and lists their tickets.
type HolderHandler struct {
	Secret  string
	TTL     time.Duration
	Tickets TicketLister
	Log     *zap.Logger
}

func NewHolderHandler(secret string, ttl time.Duration, tickets TicketLister, log *zap.Logger) *HolderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HolderHandler{Secret: secret, TTL: ttl, Tickets: tickets, Log: log}
}

// Issue handles POST /v1/holders.  The returned token is sent back as
// "Authorization: Bearer <token>" on every seat request.
func (h *HolderHandler) Issue(c echo.Context) error {
	tok, err := utils.NewHolderToken(h.Secret, h.TTL)
	if err != nil {
		h.Log.Error("issue holder token failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusCreated, tok)
}

type ticketView struct {
	model.Ticket
	SeatLabels []string `json:"seat_labels"`
}

// MyTickets handles GET /v1/tickets: the caller's tickets, newest first.
func (h *HolderHandler) MyTickets(c echo.Context) error {
	tickets, err := h.Tickets.ListByHolder(c.Request().Context(), middleware.HolderFrom(c))
	if err != nil {
		h.Log.Error("list tickets failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]ticketView, len(tickets))
	for i, t := range tickets {
		out[i] = ticketView{Ticket: t, SeatLabels: t.SeatLabels()}
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
