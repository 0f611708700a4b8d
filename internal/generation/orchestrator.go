package generation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"novelforge/internal/checkpoint"
	"novelforge/internal/config"
	"novelforge/internal/domain"
	"novelforge/internal/retry"
)

// Exporter receives every novel that reaches the completed status.
type Exporter interface {
	Export(ctx context.Context, novel *domain.Novel) (string, error)
}

// StepResult describes one orchestrator step.
type StepResult struct {
	Stage   checkpoint.Stage
	Outcome Outcome
	Status  checkpoint.Status
}

// Done reports whether the novel needs no further steps.
func (r StepResult) Done() bool { return r.Status.Terminal() }

// Orchestrator owns retry and failure escalation around the Executor.
type Orchestrator struct {
	repo     domain.NovelRepository
	exec     *Executor
	policy   config.RetryProfile
	exporter Exporter
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithExporter hands completed novels to exp.
func WithExporter(exp Exporter) OrchestratorOption {
	return func(o *Orchestrator) { o.exporter = exp }
}

func NewOrchestrator(repo domain.NovelRepository, exec *Executor, policy config.RetryProfile, logger zerolog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{repo: repo, exec: exec, policy: policy, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Step advances the novel by exactly one stage. A stage that keeps failing is
// retried with linear backoff; once attempts run out, or the failure is
// fatal, the novel is marked as failed and a *StageFailure is returned.
func (o *Orchestrator) Step(ctx context.Context, novelID string) (StepResult, error) {
	n, err := o.repo.Get(ctx, novelID)
	if err != nil {
		return StepResult{}, err
	}
	result := StepResult{Stage: n.Stage, Status: n.Status}
	switch n.Status {
	case checkpoint.StatusCompleted:
		return result, nil
	case checkpoint.StatusError:
		return result, &NovelFailedError{NovelID: n.ID, LastError: n.LastError}
	}

	target, err := checkpoint.Next(n.Stage, n.ChapterCount, o.exec.Bounds())
	if err != nil {
		return result, o.fail(ctx, n, n.Stage, err)
	}

	log := o.logger.With().Str("novel_id", novelID).Str("stage", target.String()).Logger()
	var outcome Outcome
	err = retry.Do(ctx, retry.Policy{
		MaxAttempts: o.policy.MaxAttempts,
		Delay:       o.policy.Delay,
		Retryable:   retryable,
		Sleep:       o.sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).Msg("generation: stage attempt failed, retrying")
		},
	}, func(ctx context.Context, attempt int) error {
		out, err := o.exec.Execute(ctx, novelID, target)
		outcome = out
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		if errors.Is(err, ErrNovelFailed) {
			return result, err
		}
		return result, o.fail(ctx, n, target, err)
	}

	result = StepResult{Stage: target, Outcome: outcome, Status: checkpoint.StatusFor(target, n.ChapterCount)}
	if outcome == OutcomeNoop {
		if current, err := o.repo.Get(ctx, novelID); err == nil {
			result = StepResult{Stage: current.Stage, Outcome: outcome, Status: current.Status}
		}
	}
	if result.Status == checkpoint.StatusCompleted && outcome == OutcomeApplied {
		o.export(ctx, novelID)
	}
	return result, nil
}

// Drive runs Step until the novel completes or fails.
func (o *Orchestrator) Drive(ctx context.Context, novelID string) error {
	_, err := o.DriveUntil(ctx, novelID, time.Time{})
	return err
}

// DriveUntil is Drive with a soft deadline: no new stage starts once deadline
// has passed, and a stage already running is allowed to finish. It reports
// whether the novel reached a terminal status. A zero deadline never expires.
func (o *Orchestrator) DriveUntil(ctx context.Context, novelID string, deadline time.Time) (bool, error) {
	for {
		res, err := o.Step(ctx, novelID)
		if err != nil {
			return false, err
		}
		if res.Done() {
			o.logger.Info().Str("novel_id", novelID).Str("status", string(res.Status)).Msg("generation: novel finished")
			return true, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			o.logger.Info().Str("novel_id", novelID).Str("stage", res.Stage.String()).Msg("generation: drive slice used up")
			return false, nil
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, n *domain.Novel, stage checkpoint.Stage, cause error) error {
	message := cause.Error()
	o.logger.Error().Err(cause).Str("novel_id", n.ID).Str("stage", stage.String()).Msg("generation: stage failed")
	if err := o.repo.MarkFailed(ctx, n.ID, n.Stage, message); err != nil {
		if errors.Is(err, domain.ErrStageConflict) {
			o.logger.Warn().Str("novel_id", n.ID).Msg("generation: novel moved on before failure was recorded")
		} else {
			o.logger.Error().Err(err).Str("novel_id", n.ID).Msg("generation: record failure")
		}
	}
	return &StageFailure{NovelID: n.ID, Stage: stage, Err: cause}
}

func (o *Orchestrator) export(ctx context.Context, novelID string) {
	if o.exporter == nil {
		return
	}
	n, err := o.repo.Get(ctx, novelID)
	if err != nil {
		o.logger.Error().Err(err).Str("novel_id", novelID).Msg("generation: load completed novel")
		return
	}
	key, err := o.exporter.Export(ctx, n)
	if err != nil {
		o.logger.Error().Err(err).Str("novel_id", novelID).Msg("generation: export manuscript")
		return
	}
	o.logger.Info().Str("novel_id", novelID).Str("key", key).Msg("generation: manuscript exported")
}
