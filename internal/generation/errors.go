// Package generation advances novels through their stages: it runs one stage
// at a time, retries failed stages and reports progress.
package generation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"novelforge/internal/checkpoint"
	"novelforge/internal/config"
	"novelforge/internal/domain"
	"novelforge/internal/providers/llm"
)

// ErrNovelFailed matches every NovelFailedError.
var ErrNovelFailed = errors.New("novel generation failed")

// NovelFailedError is returned when advancement is requested for a novel that
// is already in the error state. It carries the stored failure message.
type NovelFailedError struct {
	NovelID   string
	LastError string
}

func (e *NovelFailedError) Error() string {
	return fmt.Sprintf("novel %s failed: %s", e.NovelID, e.LastError)
}

func (e *NovelFailedError) Is(target error) bool { return target == ErrNovelFailed }

// ContentError reports generated text that failed the acceptance checks of its
// stage. It is always retryable.
type ContentError struct {
	Stage  checkpoint.Stage
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// StageFailure is returned once a stage has been given up on. The novel has
// been moved to the error state with Err as its last error.
type StageFailure struct {
	NovelID string
	Stage   checkpoint.Stage
	Err     error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("novel %s stage %s failed: %v", e.NovelID, e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// retryable separates failures worth another attempt from fatal ones.
func retryable(err error) bool {
	var content *ContentError
	if errors.As(err, &content) {
		return true
	}
	switch {
	case errors.Is(err, checkpoint.ErrChapterCountOutOfRange),
		errors.Is(err, checkpoint.ErrInvalidTransition),
		errors.Is(err, checkpoint.ErrInvalidStage),
		errors.Is(err, checkpoint.ErrSequenceComplete),
		errors.Is(err, ErrNovelFailed),
		errors.Is(err, domain.ErrNotFound):
		return false
	}
	return llm.IsRetryable(err)
}

func validateOutline(stage checkpoint.Stage, text string, p config.OutlineProfile) error {
	n := utf8.RuneCountInString(text)
	if n < p.MinLength {
		return &ContentError{Stage: stage, Reason: fmt.Sprintf("outline too short: %d characters, need at least %d", n, p.MinLength)}
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return &ContentError{Stage: stage, Reason: fmt.Sprintf("outline too long: %d characters, limit %d", n, p.MaxLength)}
	}
	return nil
}

func validateChapter(stage checkpoint.Stage, text string, p config.ChapterProfile) error {
	n := utf8.RuneCountInString(text)
	switch {
	case n < p.MinLength:
		return &ContentError{Stage: stage, Reason: fmt.Sprintf("chapter too short: %d characters, need at least %d", n, p.MinLength)}
	case n > p.MaxLength:
		return &ContentError{Stage: stage, Reason: fmt.Sprintf("chapter too long: %d characters, limit %d", n, p.MaxLength)}
	case !hasContentLine(text):
		return &ContentError{Stage: stage, Reason: "chapter has no non-blank line"}
	}
	return nil
}

func hasContentLine(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return true
		}
	}
	return false
}
