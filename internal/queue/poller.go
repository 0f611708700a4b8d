package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"novelforge/internal/domain"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultLease        = 15 * time.Minute
)

// Poller claims server-driven novels straight from the store, one at a time.
type Poller struct {
	repo     domain.NovelRepository
	driver   Driver
	logger   zerolog.Logger
	interval time.Duration
	lease    time.Duration
}

func NewPoller(repo domain.NovelRepository, driver Driver, logger zerolog.Logger, interval, lease time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if lease <= 0 {
		lease = DefaultLease
	}
	return &Poller{repo: repo, driver: driver, logger: logger, interval: interval, lease: lease}
}

// Run claims and drives novels until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := p.RunOnce(ctx)
		if err != nil {
			p.logger.Error().Err(err).Msg("worker: failed to claim novel")
		}
		if handled {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// RunOnce claims at most one novel and drives it. It reports whether a
// novel was claimed.
func (p *Poller) RunOnce(ctx context.Context) (bool, error) {
	n, err := p.repo.ClaimNext(ctx, p.lease)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	p.logger.Info().Str("novel_id", n.ID).Str("stage", n.Stage.String()).Msg("worker: picked novel")

	driveCtx, stopRenewing := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.keepLease(driveCtx, n.ID)
	}()

	err = p.driver.Drive(ctx, n.ID)
	stopRenewing()
	wg.Wait()
	if err != nil && ctx.Err() == nil {
		p.logger.Error().Err(err).Str("novel_id", n.ID).Msg("worker: novel failed")
	}
	// The lease is dropped even after cancellation so another worker can
	// resume without waiting for it to expire.
	if err := p.repo.Release(context.WithoutCancel(ctx), n.ID); err != nil {
		p.logger.Error().Err(err).Str("novel_id", n.ID).Msg("worker: release lease failed")
	}
	return true, nil
}

// keepLease renews the claim on id every third of the lease until ctx ends,
// so a long drive is never picked up by a second worker.
func (p *Poller) keepLease(ctx context.Context, id string) {
	ticker := time.NewTicker(max(p.lease/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.repo.Renew(ctx, id, p.lease); err != nil && ctx.Err() == nil {
				p.logger.Warn().Err(err).Str("novel_id", id).Msg("worker: renew lease failed")
			}
		}
	}
}
