package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"novelforge/internal/domain"
)

// Reporter is the read-only view used by polling clients.
type Reporter struct {
	repo domain.NovelRepository
}

func NewReporter(repo domain.NovelRepository) *Reporter {
	return &Reporter{repo: repo}
}

// Progress returns the snapshot for id. An unknown id reports the pending
// default instead of an error.
func (r *Reporter) Progress(ctx context.Context, id string) (domain.Progress, error) {
	n, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PendingProgress(id), nil
		}
		return domain.Progress{}, err
	}
	return domain.ProgressOf(n), nil
}

// Sweeper fails novels that stopped advancing.
type Sweeper struct {
	repo       domain.NovelRepository
	staleAfter time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewSweeper(repo domain.NovelRepository, staleAfter time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{repo: repo, staleAfter: staleAfter, logger: logger, now: time.Now}
}

// Sweep marks every non-terminal novel idle for longer than the stale window
// as failed and returns how many were touched.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	before := s.now().UTC().Add(-s.staleAfter)
	message := fmt.Sprintf("generation timed out after %s of inactivity", s.staleAfter)
	n, err := s.repo.MarkStale(ctx, before, message)
	if err != nil {
		return 0, fmt.Errorf("sweep stale novels: %w", err)
	}
	if n > 0 {
		s.logger.Warn().Int64("count", n).Dur("stale_after", s.staleAfter).Msg("generation: stale novels marked as failed")
	}
	return n, nil
}

// Run sweeps every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("generation: sweep failed")
			}
		}
	}
}
