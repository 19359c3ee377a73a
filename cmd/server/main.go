package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/studycafe-seat-pass/internal/clock"
	"github.com/iliyamo/studycafe-seat-pass/internal/config"
	"github.com/iliyamo/studycafe-seat-pass/internal/database"
	"github.com/iliyamo/studycafe-seat-pass/internal/handler"
	"github.com/iliyamo/studycafe-seat-pass/internal/middleware"
	"github.com/iliyamo/studycafe-seat-pass/internal/queue"
	"github.com/iliyamo/studycafe-seat-pass/internal/repository"
	"github.com/iliyamo/studycafe-seat-pass/internal/repository/memory"
	"github.com/iliyamo/studycafe-seat-pass/internal/router"
	"github.com/iliyamo/studycafe-seat-pass/internal/service"
)

// backend is the selected persistence: the transactional store behind the
// coordinator plus the auth tables.
type backend struct {
	store  service.Store
	users  handler.UserStore
	tokens handler.TokenStore
	close  func()
}

func openBackend(ctx context.Context, cfg config.Config) backend {
	if cfg.StoreDriver == config.DriverMemory {
		log.Printf("store: using in-memory store (%d seats); data is lost on exit", len(cfg.SeatIDs))
		s := memory.New(memory.Options{Catalog: database.DefaultCatalog, SeatIDs: cfg.SeatIDs})
		return backend{store: s, users: s.Users(), tokens: s.Tokens(), close: func() {}}
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.Migrate(mctx, db, database.DefaultCatalog, cfg.SeatIDs); err != nil {
		log.Fatalf("database: migrate: %v", err)
	}
	return backend{
		store:  repository.NewMySQLStore(db),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		close:  func() { _ = db.Close() },
	}
}

func main() {
	cfg := config.Load() // Load environment config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be := openBackend(ctx, cfg)
	defer be.close()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	deny := middleware.NewTokenDenylist(rdb)

	opts := service.Options{Clock: clock.Real(), MaxAttempts: cfg.TxMaxAttempts}
	if cfg.EventsEnabled {
		url := queue.BrokerURL()
		pub := queue.NewPublisher(url)
		defer pub.Close()
		opts.Publisher = pub
		go func() {
			if err := queue.StartSessionConsumer(ctx, url, cfg.SessionLogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("session-consumer: stopped: %v", err)
			}
		}()
	}
	core := service.NewCoordinator(be.store, opts)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	ts := handler.TokenSettings{Secret: cfg.JWTSecret, AccessTTLMin: cfg.AccessTTLMin, RefreshTTLDays: cfg.RefreshTTLDays}
	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Auth:      handler.NewAuthHandler(ts, be.users, be.tokens, deny),
		Passes:    handler.NewPassHandler(core),
		Seats:     handler.NewSeatHandler(core, be.tokens, deny),
		Deny:      deny,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
