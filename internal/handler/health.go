package handler // declare the package name; contains HTTP handlers

import (
    "net/http"          // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Stats returns a handler for GET /v1/stats reporting how many sessions are
// loaded and how the expiry loop is doing.
func Stats(engine *reservation.Engine) echo.HandlerFunc {
    return func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{
            "active_sessions": engine.ActiveSessions(),
            "holds":           engine.HoldStats(),
        })
    }
}
