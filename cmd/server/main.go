package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	authhandler "icegrid/internal/auth/handler"
	authservice "icegrid/internal/auth/service"
	sessionstore "icegrid/internal/auth/store/session"
	authworker "icegrid/internal/auth/worker"
	dashboardhandler "icegrid/internal/dashboard/handler"
	"icegrid/internal/jwttoken"
	measurementhandler "icegrid/internal/measurement/handler"
	measurementstore "icegrid/internal/measurement/store"
	orghandler "icegrid/internal/org/handler"
	orgstore "icegrid/internal/org/store"
	"icegrid/internal/platform/config"
	"icegrid/internal/platform/database"
	"icegrid/internal/platform/health"
	"icegrid/internal/platform/logger"
	"icegrid/internal/platform/metrics"
	"icegrid/internal/platform/middleware"
	rinkhandler "icegrid/internal/rink/handler"
	rinkstore "icegrid/internal/rink/store"
	systemhandler "icegrid/internal/system/handler"
	systemstore "icegrid/internal/system/store"
	tickethandler "icegrid/internal/ticket/handler"
	ticketservice "icegrid/internal/ticket/service"
	ticketstore "icegrid/internal/ticket/store"
	httptransport "icegrid/internal/transport/http"
	userhandler "icegrid/internal/user/handler"
	userservice "icegrid/internal/user/service"
	userstore "icegrid/internal/user/store"
	weatherclient "icegrid/internal/weather/client"
	weatherhandler "icegrid/internal/weather/handler"
	weatherstore "icegrid/internal/weather/store"
	weatherworker "icegrid/internal/weather/worker"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Env == "development" {
		level = slog.LevelDebug
	}
	log := logger.New(level)

	log.Info("initializing icegrid",
		"addr", cfg.Addr,
		"env", cfg.Env,
	)

	pool, err := database.New(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := metrics.New()

	// Stores.
	sessions := sessionstore.NewPostgres(pool.DB())
	users := userstore.NewPostgres(pool.DB())
	orgs := orgstore.NewPostgres(pool.DB())
	rinks := rinkstore.NewPostgres(pool.DB())
	measurements := measurementstore.NewPostgres(pool.DB())
	tickets := ticketstore.NewPostgres(pool.DB())
	weather := weatherstore.NewPostgres(pool.DB())
	system := systemstore.NewPostgres(pool.DB())

	// Services.
	codec := jwttoken.New(cfg.JWTSigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := authservice.New(users, sessions, codec,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
	)
	userSvc := userservice.New(users, cfg.BcryptCost, log)
	ticketSvc := ticketservice.New(tickets, log, m)

	// Handlers.
	measurementH := measurementhandler.New(measurements, rinks, log, m)
	healthH := health.New(cfg.Env)
	healthH.RegisterCheck("database", health.DatabaseCheck(pool.DB()))

	router := httptransport.NewRouter(httptransport.Handlers{
		Auth:         authhandler.New(authSvc, log),
		Orgs:         orghandler.New(orgs, log),
		Users:        userhandler.New(userSvc, log),
		Rinks:        rinkhandler.New(rinks, log),
		Measurements: measurementH,
		SSP:          measurementhandler.NewSSP(measurements, rinks, ticketSvc, measurementH),
		Dashboard:    dashboardhandler.New(rinks, tickets, measurements, log),
		Tickets:      tickethandler.New(ticketSvc, log),
		Weather:      weatherhandler.New(weather, rinks, log),
		System:       systemhandler.New(system, pool.DB(), log),
		Health:       healthH,
	}, authSvc, log, middleware.NewRateLimiter(cfg.LoginRatePerMinute))

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Background workers.
	cleanup, err := authworker.New(sessions, authworker.WithLogger(log))
	if err != nil {
		log.Error("session cleanup init failed", "error", err)
		os.Exit(1)
	}
	g.Go(func() error {
		if err := cleanup.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	poller, err := weatherworker.New(rinks, weather, weatherclient.New(cfg.WeatherBaseURL), m,
		weatherworker.WithInterval(cfg.WeatherFetchInterval),
		weatherworker.WithLogger(log),
	)
	if err != nil {
		log.Error("weather poller init failed", "error", err)
		os.Exit(1)
	}
	g.Go(func() error {
		if err := poller.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
