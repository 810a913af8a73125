package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/handler"
	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
	"github.com/iliyamo/seat-reservation-engine/internal/reservation"
)

// Deps bundles what the routes need.  Redis and Events are optional: without
// Redis the rate limiter and layout cache pass requests straight through,
// and without Events the live seat stream is not registered.
type Deps struct {
	Engine    *reservation.Engine
	Clock     reservation.Clock
	Tickets   handler.TicketLister
	Events    handler.SeatSubscriber
	Redis     *redis.Client
	Config    config.Config
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *zap.Logger
}

// RegisterRoutes registers routes that do not require a holder on the
// provided Echo instance: the health check and engine stats.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/stats", handler.Stats(d.Engine))
}

// RegisterHolders registers POST /v1/holders, which mints holder tokens, and
// GET /v1/tickets, which lists the caller's tickets.
func RegisterHolders(e *echo.Echo, d Deps) {
	h := handler.NewHolderHandler(d.Config.HolderTokenSecret, d.Config.HolderTokenTTL, d.Tickets, d.Log)
	e.POST("/v1/holders", h.Issue)
	e.GET("/v1/tickets", h.MyTickets,
		middleware.HolderIdentity(d.Config.HolderTokenSecret),
		middleware.RequireHolder(),
	)
}

// RegisterSessions registers the seat routes under /v1/sessions/:id.  Reads
// accept anonymous callers; every route that changes seat state requires a
// holder and is rate limited per holder.
func RegisterSessions(e *echo.Echo, d Deps) {
	h := handler.NewSessionHandler(d.Engine, d.Clock, d.Log)

	g := e.Group("/v1/sessions/:id", middleware.HolderIdentity(d.Config.HolderTokenSecret))
	g.GET("/seats", h.GetSeatMap)
	g.GET("/layout", h.Layout, middleware.NewRedisCache(d.Cache, d.Redis))

	holder := []echo.MiddlewareFunc{
		middleware.RequireHolder(),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
	}
	g.POST("/holds", h.ClaimSeats, holder...)
	g.PUT("/holds", h.RenewHold, holder...)
	g.DELETE("/holds", h.ReleaseSeats, holder...)
	g.GET("/holds/me", h.MyHold, holder...)
	g.POST("/checkout/prepare", h.PrepareCheckout, holder...)
	g.POST("/checkout/finalize", h.FinalizeCheckout, holder...)

	if d.Events != nil {
		g.GET("/events", handler.NewEventsHandler(d.Events, d.Log).Stream)
	}
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d)
	RegisterHolders(e, d)
	RegisterSessions(e, d)
}
