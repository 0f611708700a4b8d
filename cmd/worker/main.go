package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"novelforge/internal/bootstrap"
	"novelforge/internal/generation"
	"novelforge/internal/infra"
	"novelforge/internal/queue"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build pipeline")
	}
	defer deps.Close()

	sweeper := generation.NewSweeper(deps.Store, cfg.StaleAfter, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(ctx, cfg.SweepInterval)
		return nil
	})

	switch cfg.WorkerMode {
	case infra.WorkerModePoll:
		for i := 0; i < max(1, cfg.WorkerConcurrency); i++ {
			poller := queue.NewPoller(deps.Store, deps.Orchestrator, logger.With().Int("poller", i).Logger(), cfg.PollInterval, cfg.LeaseDuration)
			g.Go(func() error {
				return poller.Run(ctx)
			})
		}
	default:
		processor := queue.NewProcessor(deps.Orchestrator, logger)
		g.Go(func() error {
			return processor.Serve(ctx, queue.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, cfg.WorkerConcurrency)
		})
	}

	logger.Info().Str("mode", cfg.WorkerMode).Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
