package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"novelforge/internal/retry"
	"novelforge/internal/sqlinline"
)

const (
	dbConnectAttempts = 5
	dbConnectDelay    = 2 * time.Second
)

// NewDBPool opens a pgx pool sized for the worker concurrency and waits for
// the database to answer, retrying while it is still starting up.
func NewDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(max(10, cfg.WorkerConcurrency+2))
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	err = retry.Do(ctx, retry.Policy{MaxAttempts: dbConnectAttempts, Delay: dbConnectDelay}, func(ctx context.Context, _ int) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables the service needs. It is safe to run repeatedly.
func Migrate(ctx context.Context, sql SQLExecutor) error {
	if _, err := sql.Exec(ctx, sqlinline.QCreateSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
