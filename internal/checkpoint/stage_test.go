package checkpoint

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNextWalksWholeSequence(t *testing.T) {
	const chapters = 10
	var (
		cur  Stage
		seen []string
	)
	for {
		next, err := Next(cur, chapters, DefaultBounds)
		if errors.Is(err, ErrSequenceComplete) {
			break
		}
		if err != nil {
			t.Fatalf("Next(%s) error: %v", cur, err)
		}
		if Compare(next, cur) <= 0 {
			t.Fatalf("Next(%s) = %s, want a later stage", cur, next)
		}
		seen = append(seen, next.String())
		cur = next
	}
	if got, want := len(seen), TotalStages(chapters); got != want {
		t.Fatalf("visited %d stages, want %d", got, want)
	}
	if seen[0] != "outline:initial" || seen[3] != "outline:completed" || seen[4] != "chapter:1:initial" {
		t.Fatalf("unexpected prefix %v", seen[:5])
	}
	if last := seen[len(seen)-1]; last != "chapter:10:completed" {
		t.Fatalf("last stage = %q, want chapter:10:completed", last)
	}
	if StatusFor(cur, chapters) != StatusCompleted {
		t.Fatalf("StatusFor(%s) = %s, want completed", cur, StatusFor(cur, chapters))
	}
}

func TestNextRejectsOutOfRangeChapterCount(t *testing.T) {
	for _, n := range []int{0, 9, 151} {
		_, err := Next(Outline(StepCompleted), n, DefaultBounds)
		if !errors.Is(err, ErrChapterCountOutOfRange) {
			t.Fatalf("Next with %d chapters error = %v, want ErrChapterCountOutOfRange", n, err)
		}
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name    string
		cur     Stage
		target  Stage
		wantErr error
	}{
		{name: "first outline step", cur: Stage{}, target: Outline(StepInitial)},
		{name: "outline pass", cur: Outline(StepInitial), target: Outline(StepRevisionOne)},
		{name: "skip outline pass", cur: Outline(StepInitial), target: Outline(StepRevisionTwo), wantErr: ErrInvalidTransition},
		{name: "regress", cur: Outline(StepRevisionTwo), target: Outline(StepRevisionOne), wantErr: ErrInvalidTransition},
		{name: "chapter before outline completed", cur: Outline(StepRevisionTwo), target: Chapter(1, StepInitial), wantErr: ErrInvalidTransition},
		{name: "enter chapter track", cur: Outline(StepCompleted), target: Chapter(1, StepInitial)},
		{name: "next chapter before completion", cur: Chapter(1, StepRevisionTwo), target: Chapter(2, StepInitial), wantErr: ErrInvalidTransition},
		{name: "next chapter", cur: Chapter(1, StepCompleted), target: Chapter(2, StepInitial)},
		{name: "beyond last chapter", cur: Chapter(12, StepCompleted), target: Chapter(13, StepInitial), wantErr: ErrSequenceComplete},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Advance(tc.cur, tc.target, 12, DefaultBounds)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Advance() error = %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("Advance() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		stage Stage
		want  Status
	}{
		{Stage{}, StatusInitializing},
		{Outline(StepInitial), StatusOutlineInProgress},
		{Outline(StepRevisionTwo), StatusOutlineInProgress},
		{Outline(StepCompleted), StatusOutlineCompleted},
		{Chapter(1, StepInitial), StatusInProgress},
		{Chapter(12, StepRevisionTwo), StatusInProgress},
		{Chapter(12, StepCompleted), StatusCompleted},
	}
	for _, tc := range tests {
		if got := StatusFor(tc.stage, 12); got != tc.want {
			t.Fatalf("StatusFor(%s) = %s, want %s", tc.stage, got, tc.want)
		}
	}
}

func TestParseStageRoundTrip(t *testing.T) {
	stages := []Stage{{}, Outline(StepInitial), Outline(StepRevisionOne), Outline(StepCompleted), Chapter(7, StepRevisionTwo), Chapter(150, StepCompleted)}
	for _, s := range stages {
		got, err := ParseStage(s.String())
		if err != nil {
			t.Fatalf("ParseStage(%q) error: %v", s.String(), err)
		}
		if got != s {
			t.Fatalf("ParseStage(%q) = %+v, want %+v", s.String(), got, s)
		}
	}
	for _, raw := range []string{"outline:pass3", "chapter:0:initial", "chapter:x:completed", "draft"} {
		if _, err := ParseStage(raw); !errors.Is(err, ErrInvalidStage) {
			t.Fatalf("ParseStage(%q) error = %v, want ErrInvalidStage", raw, err)
		}
	}
}

func TestChapterStageRevision(t *testing.T) {
	for step := StepInitial; step <= StepCompleted; step++ {
		if got, want := Chapter(1, step).ChapterStage().Revision(), int(step)-1; got != want {
			t.Fatalf("revision for %s = %d, want %d", Chapter(1, step), got, want)
		}
	}
}

func TestCountChapterMarkers(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "Chapter %d: events\n", i)
	}
	b.WriteString("As foreshadowed in chapter 3, and CHAPTER 12 again.\n")
	b.WriteString("Chapters overview and chapter12 are not markers.\n")
	if got := CountChapterMarkers(b.String()); got != 12 {
		t.Fatalf("CountChapterMarkers() = %d, want 12", got)
	}
}

func TestCountChapterMarkersIgnoresNumbersPastAGap(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "Chapter %d: events\n", i)
	}
	b.WriteString("The sequel hook pays off in chapter 40.\n")
	if got := CountChapterMarkers(b.String()); got != 10 {
		t.Fatalf("CountChapterMarkers() = %d, want 10", got)
	}
	n, err := FinalizeOutline(b.String(), DefaultBounds)
	if err != nil || n != 10 {
		t.Fatalf("FinalizeOutline() = %d, %v", n, err)
	}
	for i := 1; i <= n; i++ {
		if OutlineSegment(b.String(), i) == "" {
			t.Fatalf("chapter %d has no outline segment", i)
		}
	}

	if got := CountChapterMarkers("Chapter 1\nChapter 2\nChapter 4\nChapter 5\n"); got != 2 {
		t.Fatalf("CountChapterMarkers(gap after 2) = %d, want 2", got)
	}
	if got := CountChapterMarkers("Chapter 2\nChapter 3\n"); got != 0 {
		t.Fatalf("CountChapterMarkers(no chapter 1) = %d, want 0", got)
	}
}

func TestFinalizeOutline(t *testing.T) {
	nine := ""
	for i := 1; i <= 9; i++ {
		nine += fmt.Sprintf("Chapter %d\n", i)
	}
	if _, err := FinalizeOutline(nine, DefaultBounds); !errors.Is(err, ErrChapterCountOutOfRange) {
		t.Fatalf("FinalizeOutline(9 chapters) error = %v", err)
	}
	n, err := FinalizeOutline(nine+"Chapter 10\n", DefaultBounds)
	if err != nil || n != 10 {
		t.Fatalf("FinalizeOutline(10 chapters) = %d, %v", n, err)
	}
}

func TestOutlineSegment(t *testing.T) {
	outline := "Synopsis\nChapter 1: Arrival\nShe lands.\nChapter 2: Storm\nThe sky breaks.\nChapter 10: End\nDone."
	if got := OutlineSegment(outline, 1); got != "Chapter 1: Arrival\nShe lands." {
		t.Fatalf("OutlineSegment(1) = %q", got)
	}
	if got := OutlineSegment(outline, 10); got != "Chapter 10: End\nDone." {
		t.Fatalf("OutlineSegment(10) = %q", got)
	}
	if got := OutlineSegment(outline, 4); got != "" {
		t.Fatalf("OutlineSegment(4) = %q, want empty", got)
	}
}
