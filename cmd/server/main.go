package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-seat-realtime/internal/config"
	"github.com/iliyamo/cinema-seat-realtime/internal/database"
	"github.com/iliyamo/cinema-seat-realtime/internal/handler"
	"github.com/iliyamo/cinema-seat-realtime/internal/logging"
	"github.com/iliyamo/cinema-seat-realtime/internal/middleware"
	"github.com/iliyamo/cinema-seat-realtime/internal/queue"
	"github.com/iliyamo/cinema-seat-realtime/internal/realtime"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository"
	"github.com/iliyamo/cinema-seat-realtime/internal/repository/memstore"
	"github.com/iliyamo/cinema-seat-realtime/internal/router"
	"github.com/iliyamo/cinema-seat-realtime/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	lg, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server exited", zap.Error(err))
	}
}

// openStore selects the ledger and booking store.  db is nil for the
// in-memory store.
func openStore(ctx context.Context, cfg config.Config) (repository.SeatLedger, repository.BookingStore, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		s := memstore.New()
		return s, s, nil, nil
	}
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	seats := repository.NewSeatRepo(db)
	return seats, repository.NewBookingRepo(db, seats), db, nil
}

func run(ctx context.Context, cfg config.Config, lg *zap.Logger) error {
	ledger, bookings, db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	var health handler.Pinger
	if db != nil {
		defer db.Close()
		health = db
	}

	hub := realtime.NewHub(ledger, lg)
	coord := service.NewCoordinator(ledger, hub, lg)
	hub.SetReleaseHook(func(ctx context.Context, partyID string) {
		if _, err := coord.ReleaseAllByParty(ctx, partyID); err != nil {
			lg.Warn("release on disconnect failed", zap.String("party_id", partyID), zap.Error(err))
		}
	})

	var notifier service.BookingNotifier
	if cfg.RabbitEnabled {
		notifier = &service.RabbitNotifier{URL: cfg.RabbitURL, Log: lg}
	}
	manager := service.NewBookingManager(ledger, bookings, hub, notifier, lg)
	sweeper := service.NewSweeper(ledger, coord, cfg.SweepInterval, cfg.HoldTimeout, lg)

	// Rate limiting degrades to a no-op when Redis is unreachable.
	var scripter redis.Scripter
	if rdb, err := config.NewRedisClient(ctx); err != nil {
		lg.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		scripter = rdb
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), scripter, lg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(lg))
	ws := handler.NewWSHandler(hub, coord, manager, cfg.WSSendBuffer, cfg.WSPingInterval, lg)
	router.Register(e, router.Handlers{
		Health:   handler.Health(health),
		Seats:    handler.NewSeatHandler(coord, lg),
		Bookings: handler.NewBookingHandler(manager, lg),
		Admin:    handler.NewAdminHandler(coord, manager, sweeper, lg),
		WS:       ws,
	}, cfg.JWTSecret, limiter.Middleware())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	if cfg.RabbitEnabled {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, Dir: cfg.BookingLogDir, Log: lg}
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Holds are released while the store is still open.
		hub.Close(shutdownCtx)
		if err := e.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := ws.Wait(shutdownCtx); err != nil {
			lg.Warn("websocket connections still open at shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
