// Package checkpoint defines the stage tracks of a novel and the single
// transition function that moves a novel from one stage to the next.
package checkpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status is the coarse lifecycle state of a novel.
type Status string

const (
	StatusPending           Status = "pending"
	StatusInitializing      Status = "initializing"
	StatusOutlineInProgress Status = "outline_in_progress"
	StatusOutlineCompleted  Status = "outline_completed"
	StatusInProgress        Status = "in_progress"
	StatusCompleted         Status = "completed"
	StatusError             Status = "error"
)

// Terminal reports whether no further stage may run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// OutlineStage is the persisted position of the outline track.
type OutlineStage string

const (
	OutlineInitial   OutlineStage = "initial"
	OutlinePass1     OutlineStage = "pass1"
	OutlinePass2     OutlineStage = "pass2"
	OutlineCompleted OutlineStage = "completed"
)

// ChapterStage is the persisted position of a single chapter.
type ChapterStage string

const (
	ChapterInitial     ChapterStage = "initial"
	ChapterRevisionOne ChapterStage = "revision_one"
	ChapterRevisionTwo ChapterStage = "revision_two"
	ChapterCompleted   ChapterStage = "completed"
)

// Revision returns the revision counter bound to the chapter stage.
func (c ChapterStage) Revision() int {
	switch c {
	case ChapterInitial:
		return 0
	case ChapterRevisionOne:
		return 1
	case ChapterRevisionTwo:
		return 2
	case ChapterCompleted:
		return 3
	default:
		return -1
	}
}

// Step is a position inside a track. Both tracks have four steps.
type Step int

const (
	StepNone Step = iota
	StepInitial
	StepRevisionOne
	StepRevisionTwo
	StepCompleted
)

const stepsPerTrack = 4

var (
	ErrInvalidTransition      = errors.New("invalid stage transition")
	ErrSequenceComplete       = errors.New("generation sequence already complete")
	ErrChapterCountOutOfRange = errors.New("chapter count out of range")
	ErrInvalidStage           = errors.New("invalid stage")
)

// Stage is the last completed position of a novel. Chapter 0 is the outline
// track; the zero value means nothing has been generated yet.
type Stage struct {
	Chapter int
	Step    Step
}

// Outline returns the outline-track stage for step.
func Outline(step Step) Stage { return Stage{Step: step} }

// Chapter returns the chapter-track stage for chapter n at step.
func Chapter(n int, step Step) Stage { return Stage{Chapter: n, Step: step} }

// IsZero reports whether no stage has completed yet.
func (s Stage) IsZero() bool { return s.Step == StepNone }

// IsOutline reports whether the stage belongs to the outline track.
func (s Stage) IsOutline() bool { return s.Step != StepNone && s.Chapter == 0 }

// IsChapter reports whether the stage belongs to a chapter track.
func (s Stage) IsChapter() bool { return s.Step != StepNone && s.Chapter > 0 }

// OutlineStage maps the step onto the outline enum.
func (s Stage) OutlineStage() OutlineStage {
	switch s.Step {
	case StepInitial:
		return OutlineInitial
	case StepRevisionOne:
		return OutlinePass1
	case StepRevisionTwo:
		return OutlinePass2
	case StepCompleted:
		return OutlineCompleted
	default:
		return ""
	}
}

// ChapterStage maps the step onto the chapter enum.
func (s Stage) ChapterStage() ChapterStage {
	switch s.Step {
	case StepInitial:
		return ChapterInitial
	case StepRevisionOne:
		return ChapterRevisionOne
	case StepRevisionTwo:
		return ChapterRevisionTwo
	case StepCompleted:
		return ChapterCompleted
	default:
		return ""
	}
}

// ordinal places every stage on one line: pending, four outline steps, then
// four steps per chapter.
func (s Stage) ordinal() int {
	if s.IsZero() {
		return 0
	}
	if s.Chapter == 0 {
		return int(s.Step)
	}
	return stepsPerTrack + (s.Chapter-1)*stepsPerTrack + int(s.Step)
}

// Compare orders two stages along the generation sequence.
func Compare(a, b Stage) int {
	ao, bo := a.ordinal(), b.ordinal()
	switch {
	case ao < bo:
		return -1
	case ao > bo:
		return 1
	default:
		return 0
	}
}

// String renders the persisted key, e.g. "outline:pass1" or "chapter:3:revision_two".
func (s Stage) String() string {
	switch {
	case s.IsZero():
		return string(StatusPending)
	case s.IsOutline():
		return "outline:" + string(s.OutlineStage())
	default:
		return "chapter:" + strconv.Itoa(s.Chapter) + ":" + string(s.ChapterStage())
	}
}

// ParseStage is the inverse of Stage.String.
func ParseStage(raw string) (Stage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == string(StatusPending) {
		return Stage{}, nil
	}
	parts := strings.Split(raw, ":")
	switch {
	case len(parts) == 2 && parts[0] == "outline":
		for step := StepInitial; step <= StepCompleted; step++ {
			if string(Outline(step).OutlineStage()) == parts[1] {
				return Outline(step), nil
			}
		}
	case len(parts) == 3 && parts[0] == "chapter":
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 {
			break
		}
		for step := StepInitial; step <= StepCompleted; step++ {
			if string(Chapter(n, step).ChapterStage()) == parts[2] {
				return Chapter(n, step), nil
			}
		}
	}
	return Stage{}, fmt.Errorf("%w: %q", ErrInvalidStage, raw)
}

// Bounds is the accepted chapter-count range of a finalized outline.
type Bounds struct {
	Min int
	Max int
}

// DefaultBounds matches the published outline contract.
var DefaultBounds = Bounds{Min: 10, Max: 150}

// Contains reports whether n falls inside the bounds.
func (b Bounds) Contains(n int) bool { return n >= b.Min && n <= b.Max }

// Next returns the single legal successor of cur. chapterCount is only
// consulted once the outline track has completed.
func Next(cur Stage, chapterCount int, bounds Bounds) (Stage, error) {
	switch {
	case cur.IsZero():
		return Outline(StepInitial), nil
	case cur.Step < StepNone || cur.Step > StepCompleted || cur.Chapter < 0:
		return Stage{}, fmt.Errorf("%w: %s", ErrInvalidStage, cur)
	case cur.Step < StepCompleted:
		return Stage{Chapter: cur.Chapter, Step: cur.Step + 1}, nil
	case cur.IsOutline():
		if !bounds.Contains(chapterCount) {
			return Stage{}, fmt.Errorf("%w: %d not in [%d,%d]", ErrChapterCountOutOfRange, chapterCount, bounds.Min, bounds.Max)
		}
		return Chapter(1, StepInitial), nil
	case cur.Chapter < chapterCount:
		return Chapter(cur.Chapter+1, StepInitial), nil
	default:
		return Stage{}, ErrSequenceComplete
	}
}

// Advance rejects any target other than the successor of cur.
func Advance(cur, target Stage, chapterCount int, bounds Bounds) error {
	next, err := Next(cur, chapterCount, bounds)
	if err != nil {
		return err
	}
	if next != target {
		return fmt.Errorf("%w: %s -> %s (expected %s)", ErrInvalidTransition, cur, target, next)
	}
	return nil
}

// StatusFor derives the lifecycle status a novel has after completing stage.
func StatusFor(stage Stage, chapterCount int) Status {
	switch {
	case stage.IsZero():
		return StatusInitializing
	case stage.IsOutline() && stage.Step == StepCompleted:
		return StatusOutlineCompleted
	case stage.IsOutline():
		return StatusOutlineInProgress
	case stage.Step == StepCompleted && stage.Chapter == chapterCount:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}

// TotalStages is the number of stages a novel with chapterCount chapters runs.
func TotalStages(chapterCount int) int {
	return stepsPerTrack + chapterCount*stepsPerTrack
}

// CompletedStages is the number of stages done once stage has completed.
func CompletedStages(stage Stage) int {
	return stage.ordinal()
}
