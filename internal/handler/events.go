package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SeatSubscriber streams seat change payloads of one session.
type SeatSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan []byte, func(), error)
}

// EventsHandler pushes seat changes to browsers as server-sent events.
type EventsHandler struct {
	Subscriber SeatSubscriber
	KeepAlive  time.Duration
	Log        *zap.Logger
}

func NewEventsHandler(sub SeatSubscriber, log *zap.Logger) *EventsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventsHandler{Subscriber: sub, KeepAlive: 15 * time.Second, Log: log}
}

// Stream handles GET /v1/sessions/:id/events.  Each seat change is written
// as one "seats" event; a comment line is sent periodically so proxies keep
// the connection open.
func (h *EventsHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")
	msgs, stop, err := h.Subscriber.Subscribe(ctx, sessionID)
	if err != nil {
		h.Log.Warn("seat event subscribe failed", zap.String("session_id", sessionID), zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "live updates unavailable"})
	}
	defer stop()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case body, ok := <-msgs:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(res, "event: seats\ndata: %s\n\n", body); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
