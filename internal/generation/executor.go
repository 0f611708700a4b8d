package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"novelforge/internal/checkpoint"
	"novelforge/internal/config"
	"novelforge/internal/domain"
	"novelforge/internal/prompts"
	"novelforge/internal/providers/llm"
)

// Outcome tells the caller whether Execute changed the stored novel.
type Outcome int

const (
	// OutcomeNoop means the target was already reached or the novel is done.
	OutcomeNoop Outcome = iota
	// OutcomeApplied means the target stage was produced and persisted.
	OutcomeApplied
)

func (o Outcome) String() string {
	if o == OutcomeApplied {
		return "applied"
	}
	return "noop"
}

// Executor performs the work of exactly one stage.
type Executor struct {
	repo    domain.NovelRepository
	gen     llm.Generator
	profile config.Profile
	logger  zerolog.Logger
	now     func() time.Time
}

func NewExecutor(repo domain.NovelRepository, gen llm.Generator, profile config.Profile, logger zerolog.Logger) *Executor {
	return &Executor{
		repo:    repo,
		gen:     gen,
		profile: profile,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Bounds is the accepted chapter-count range of this executor's profile.
func (e *Executor) Bounds() checkpoint.Bounds {
	return checkpoint.Bounds{Min: e.profile.Outline.MinChapters, Max: e.profile.Outline.MaxChapters}
}

// Execute produces target for the novel and persists it with a conditional
// update on the stage it read. Calling it again for a stage that is already
// stored changes nothing and reports OutcomeNoop.
func (e *Executor) Execute(ctx context.Context, novelID string, target checkpoint.Stage) (Outcome, error) {
	n, err := e.repo.Get(ctx, novelID)
	if err != nil {
		return OutcomeNoop, err
	}
	switch n.Status {
	case checkpoint.StatusCompleted:
		return OutcomeNoop, nil
	case checkpoint.StatusError:
		return OutcomeNoop, &NovelFailedError{NovelID: n.ID, LastError: n.LastError}
	}
	if checkpoint.Compare(target, n.Stage) <= 0 {
		return OutcomeNoop, nil
	}
	if err := checkpoint.Advance(n.Stage, target, n.ChapterCount, e.Bounds()); err != nil {
		return OutcomeNoop, err
	}

	next := n.Clone()
	if err := e.apply(ctx, next, target); err != nil {
		return OutcomeNoop, err
	}
	next.Stage = target
	next.Status = checkpoint.StatusFor(target, next.ChapterCount)
	next.LastError = ""
	next.UpdatedAt = e.now()

	if err := e.repo.Update(ctx, next, n.Stage); err != nil {
		if !errors.Is(err, domain.ErrStageConflict) {
			return OutcomeNoop, fmt.Errorf("persist %s: %w", target, err)
		}
		current, getErr := e.repo.Get(ctx, novelID)
		if getErr == nil && checkpoint.Compare(current.Stage, target) >= 0 {
			e.logger.Info().Str("novel_id", novelID).Str("stage", target.String()).Msg("generation: stage already applied by another writer")
			return OutcomeNoop, nil
		}
		return OutcomeNoop, err
	}

	e.logger.Info().
		Str("novel_id", novelID).
		Str("stage", target.String()).
		Str("status", string(next.Status)).
		Str("provider", e.gen.Name()).
		Msg("generation: stage applied")
	return OutcomeApplied, nil
}

func (e *Executor) apply(ctx context.Context, n *domain.Novel, target checkpoint.Stage) error {
	now := e.now()
	if target.IsOutline() {
		return e.applyOutline(ctx, n, target, now)
	}
	return e.applyChapter(ctx, n, target, now)
}

func (e *Executor) applyOutline(ctx context.Context, n *domain.Novel, target checkpoint.Stage, now time.Time) error {
	op := e.profile.Outline
	if target.Step == checkpoint.StepCompleted {
		count, err := checkpoint.FinalizeOutline(n.Outline.Current, e.Bounds())
		if err != nil {
			return err
		}
		n.ChapterCount = count
		n.Outline.Status = checkpoint.OutlineCompleted
		return nil
	}

	var (
		prompt  string
		purpose = llm.PurposeOutline
	)
	switch target.Step {
	case checkpoint.StepInitial:
		prompt = prompts.Outline(n.Parameters)
	default:
		prompt = prompts.OutlineRevision(n.Parameters, n.Outline.Current, int(target.Step)-1)
		purpose = llm.PurposeOutlineRefine
	}
	text, err := e.generate(ctx, purpose, prompt, op.MaxTokens, op.Temperature, op.PromptLimit)
	if err != nil {
		return err
	}
	if err := validateOutline(target, text, op); err != nil {
		return err
	}
	n.Outline.Current = text
	n.Outline.Status = target.OutlineStage()
	n.Outline.Iterations = append(n.Outline.Iterations, domain.OutlineIteration{Content: text, CreatedAt: now})
	return nil
}

func (e *Executor) applyChapter(ctx context.Context, n *domain.Novel, target checkpoint.Stage, now time.Time) error {
	cp := e.profile.Chapter
	index := target.Chapter
	segment := checkpoint.OutlineSegment(n.Outline.Current, index)

	if target.Step == checkpoint.StepInitial {
		if len(n.Chapters) != index-1 {
			return fmt.Errorf("%w: chapter %d drafted with %d stored chapters", checkpoint.ErrInvalidStage, index, len(n.Chapters))
		}
		text, err := e.draftChapter(ctx, n, segment, index)
		if err != nil {
			return err
		}
		if err := validateChapter(target, text, cp); err != nil {
			return err
		}
		n.Chapters = append(n.Chapters, domain.ChapterRecord{
			Index:     index,
			Content:   text,
			Revision:  checkpoint.ChapterInitial.Revision(),
			Stage:     checkpoint.ChapterInitial,
			UpdatedAt: now,
		})
		n.CurrentChapter = index
		return nil
	}

	if index > len(n.Chapters) {
		return fmt.Errorf("%w: chapter %d has no draft", checkpoint.ErrInvalidStage, index)
	}
	rec := &n.Chapters[index-1]
	stage := target.ChapterStage()
	if target.Step != checkpoint.StepCompleted {
		pass := stage.Revision()
		prompt := prompts.ChapterRevision(n.Parameters, rec.Content, segment, index, pass)
		text, err := e.generate(ctx, llm.PurposeChapterRefine, prompt, cp.MaxTokens, cp.Temperature, cp.PromptLimit)
		if err != nil {
			return err
		}
		if err := validateChapter(target, text, cp); err != nil {
			return err
		}
		rec.Content = text
	}
	rec.Revision = stage.Revision()
	rec.Stage = stage
	rec.UpdatedAt = now
	return nil
}

// draftChapter writes the first draft. With dual drafting enabled two drafts
// are requested concurrently and a comparison call picks one, or asks for a
// refined combination.
func (e *Executor) draftChapter(ctx context.Context, n *domain.Novel, segment string, index int) (string, error) {
	cp := e.profile.Chapter
	previous := n.PreviousChapters(index)
	if keep := cp.PreviousChapters; keep >= 0 && len(previous) > keep {
		previous = previous[len(previous)-keep:]
	}
	prompt := prompts.ChapterDraft(n.Parameters, segment, previous, index)
	if !cp.DualDraft {
		return e.generate(ctx, llm.PurposeChapter, prompt, cp.MaxTokens, cp.Temperature, cp.PromptLimit)
	}

	drafts := make([]string, 2)
	g, gctx := errgroup.WithContext(ctx)
	for i := range drafts {
		i := i
		g.Go(func() error {
			text, err := e.generate(gctx, llm.PurposeChapter, prompt, cp.MaxTokens, cp.Temperature, cp.PromptLimit)
			drafts[i] = text
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	verdict, err := e.generate(ctx, llm.PurposeComparison, prompts.Comparison(drafts[0], drafts[1]), cp.MaxTokens, cp.ComparisonTemperature, cp.PromptLimit)
	if err != nil {
		return "", err
	}
	choice := prompts.ParseChoice(verdict)
	e.logger.Debug().Str("novel_id", n.ID).Int("chapter", index).Str("choice", string(choice)).Msg("generation: drafts compared")
	switch choice {
	case prompts.ChoiceDraftB:
		return drafts[1], nil
	case prompts.ChoiceRefine:
		refine := prompts.Refinement(n.Parameters, drafts[0], verdict, index)
		return e.generate(ctx, llm.PurposeChapterRefine, refine, cp.MaxTokens, cp.Temperature, cp.PromptLimit)
	default:
		return drafts[0], nil
	}
}

func (e *Executor) generate(ctx context.Context, purpose llm.Purpose, prompt string, maxTokens int, temperature float64, limit int) (string, error) {
	text, err := e.gen.Generate(ctx, llm.Request{
		Purpose:     purpose,
		Prompt:      prompts.Truncate(prompt, limit),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
