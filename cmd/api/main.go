package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"novelforge/internal/bootstrap"
	"novelforge/internal/http/handlers"
	httpapi "novelforge/internal/http/httpapi"
	"novelforge/internal/infra"
	"novelforge/internal/infra/geoip"
	"novelforge/internal/middleware"
	"novelforge/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build pipeline")
	}
	defer deps.Close()

	var enqueuer queue.Enqueuer = queue.PollEnqueuer{}
	if cfg.WorkerMode == infra.WorkerModeQueue {
		client := queue.NewClient(queue.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, logger)
		defer client.Close()
		enqueuer = client
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip database unavailable, language falls back to headers")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	app := handlers.NewApp(handlers.App{
		Service:  deps.Service,
		Steps:    deps.Orchestrator,
		Progress: deps.Reporter,
		Queue:    enqueuer,
		Store:    deps.Store,
		Logger:   logger,
	})
	if deps.Exporter != nil {
		app.Links = deps.Exporter
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
		Logger:          logger,
		StaticDir:       deps.StaticDir,
	})
	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("addr", server.Addr()).Str("worker_mode", cfg.WorkerMode).Msg("api: listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("api: http server failed")
		return
	}
	logger.Info().Msg("api: stopped")
}
