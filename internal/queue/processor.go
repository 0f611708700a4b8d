package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"novelforge/internal/domain"
	"novelforge/internal/generation"
)

// Driver advances a novel until it completes or fails.
type Driver interface {
	Drive(ctx context.Context, novelID string) error
}

// SliceDriver drives a novel until a soft deadline and reports whether it
// reached a terminal status.
type SliceDriver interface {
	Driver
	DriveUntil(ctx context.Context, novelID string, deadline time.Time) (bool, error)
}

// Continuer queues the next slice of a novel.
type Continuer interface {
	EnqueueContinuation(ctx context.Context, novelID string, slice int) (string, error)
}

// Processor consumes drive tasks. Each task drives its novel for at most one
// slice and then queues a continuation, so a long novel is never cut off by
// the task timeout.
type Processor struct {
	driver SliceDriver
	next   Continuer
	slice  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewProcessor(driver SliceDriver, logger zerolog.Logger) *Processor {
	return &Processor{driver: driver, slice: DefaultSlice, logger: logger, now: time.Now}
}

// HandleDriveTask drives the novel named by the task payload. Failures that
// are already recorded on the novel are not retried.
func (p *Processor) HandleDriveTask(ctx context.Context, t *asynq.Task) error {
	var payload DrivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.NovelID == "" {
		return fmt.Errorf("novel id missing: %w", asynq.SkipRetry)
	}

	log := p.logger.With().Str("novel_id", payload.NovelID).Int("slice", payload.Slice).Logger()
	log.Info().Msg("worker: picked novel")

	deadline := time.Time{}
	if p.next != nil {
		deadline = p.now().Add(p.slice)
	}
	done, err := p.driver.DriveUntil(ctx, payload.NovelID, deadline)
	switch {
	case err == nil && (done || p.next == nil):
		return nil
	case err == nil:
		return p.continueDrive(ctx, log, payload)
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("worker: novel no longer exists")
		return nil
	case isRecorded(err):
		log.Error().Err(err).Msg("worker: novel failed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil && p.next != nil:
		// The task deadline hit mid-stage. The interrupted stage was not
		// applied, so the continuation redoes it.
		return p.continueDrive(ctx, log, payload)
	default:
		return err
	}
}

// continueDrive queues the next slice. When Redis refuses, the remaining task
// time is spent driving instead.
func (p *Processor) continueDrive(ctx context.Context, log zerolog.Logger, payload DrivePayload) error {
	_, err := p.next.EnqueueContinuation(context.WithoutCancel(ctx), payload.NovelID, payload.Slice+1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("queue continuation: %w", err)
	}
	log.Error().Err(err).Msg("worker: queue continuation failed, driving on")
	err = p.driver.Drive(ctx, payload.NovelID)
	if err != nil && isRecorded(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Mux routes task types to the processor.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDriveNovel, p.HandleDriveTask)
	return mux
}

// Serve consumes tasks until ctx is cancelled. Continuations are queued on
// the same Redis instance.
func (p *Processor) Serve(ctx context.Context, opts RedisOptions, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if p.next == nil {
		client := NewClient(opts, p.logger)
		defer client.Close()
		p.next = client
	}
	srv := asynq.NewServer(
		opts.clientOpt(),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				defaultQueue: 1,
			},
		},
	)
	p.logger.Info().Int("concurrency", concurrency).Dur("slice", p.slice).Msg("worker: task processor started")
	if err := srv.Start(p.Mux()); err != nil {
		return fmt.Errorf("could not run server: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return ctx.Err()
}

func isRecorded(err error) bool {
	var failure *generation.StageFailure
	return errors.As(err, &failure) || errors.Is(err, generation.ErrNovelFailed)
}
