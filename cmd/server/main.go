package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-reservation-engine/internal/config"
	"github.com/iliyamo/seat-reservation-engine/internal/database"
	"github.com/iliyamo/seat-reservation-engine/internal/handler"
	"github.com/iliyamo/seat-reservation-engine/internal/logger"
	"github.com/iliyamo/seat-reservation-engine/internal/middleware"
	"github.com/iliyamo/seat-reservation-engine/internal/queue"
	"github.com/iliyamo/seat-reservation-engine/internal/repository"
	"github.com/iliyamo/seat-reservation-engine/internal/reservation"
	"github.com/iliyamo/seat-reservation-engine/internal/router"
	"github.com/iliyamo/seat-reservation-engine/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config
	if err := logger.Init(cfg.LogLevel, cfg.IsDev()); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: MySQL when configured, otherwise in-memory demo sessions.
	var (
		loader  reservation.SeatMapLoader
		store   reservation.TicketStore
		tickets handler.TicketLister
		db      *sql.DB
	)
	if cfg.HasDB() {
		var err error
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Fatal("database open failed", zap.Error(err))
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("database migrate failed", zap.Error(err))
		}
		repo := repository.NewTicketRepo(db)
		loader, store, tickets = repository.NewSessionRepo(db), repo, repo
		log.Info("using mysql storage", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	} else {
		mem := repository.NewMemoryTicketStore()
		loader = reservation.NewStaticLoader(repository.DemoSessions(cfg.DemoSessions, time.Now())...)
		store, tickets = mem, mem
		log.Warn("DB_HOST not set, using in-memory tickets and demo sessions", zap.Strings("sessions", cfg.DemoSessions))
	}

	// Redis backs rate limiting, the layout cache and live seat events.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, rate limiting, layout cache and live seat events disabled")
	} else {
		defer rdb.Close()
	}

	var wg sync.WaitGroup
	opts := []reservation.EngineOption{}
	var events handler.SeatSubscriber
	if rdb != nil {
		feed := service.NewSeatEvents(rdb, "seats", 0, logger.Named("seat-events"))
		opts = append(opts, reservation.WithSeatListener(feed))
		events = feed
		wg.Add(1)
		go func() {
			defer wg.Done()
			feed.Run(ctx)
		}()
	}
	if cfg.AMQPURL != "" {
		opts = append(opts, reservation.WithTicketPublisher(service.NewTicketPublisher(cfg.AMQPURL, logger.Named("rabbitmq"))))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := queue.StartTicketConsumer(ctx, cfg.AMQPURL, cfg.TicketLogDir, logger.Named("ticket-consumer")); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("ticket consumer stopped", zap.Error(err))
			}
		}()
	}

	clock := reservation.SystemClock{}
	engine := reservation.NewEngine(reservation.EngineConfig{
		Hold: reservation.HoldConfig{
			TTL:             cfg.HoldTTL,
			HeartbeatPeriod: cfg.HoldHeartbeat,
		},
		ArchiveInterval: cfg.ArchiveInterval,
	}, loader, store, clock, logger.Named("engine"), opts...)
	if err := engine.Start(ctx); err != nil {
		log.Fatal("engine start failed", zap.Error(err))
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger.Named("http")))
	router.Register(e, router.Deps{
		Engine:    engine,
		Clock:     clock,
		Tickets:   tickets,
		Events:    events,
		Redis:     rdb,
		Config:    cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Log:       logger.Named("handler"),
	})

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.Duration("hold_ttl", engine.HoldConfig().TTL))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	engine.Stop()
	wg.Wait()
}
