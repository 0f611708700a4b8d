package llm

import (
	"context"
	"strings"
	"testing"

	"novelforge/internal/checkpoint"
)

func TestSyntheticOutlineHonorsTargetChapterCount(t *testing.T) {
	gen := NewSynthetic()
	text, err := gen.Generate(context.Background(), Request{Purpose: PurposeOutline, Prompt: "Target chapter count: 14\nwrite"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got := checkpoint.CountChapterMarkers(text); got != 14 {
		t.Fatalf("chapter markers = %d, want 14", got)
	}
	if len(text) < 1000 {
		t.Fatalf("outline length = %d, want >= 1000", len(text))
	}
}

func TestSyntheticChapterLength(t *testing.T) {
	gen := NewSynthetic()
	text, err := gen.Generate(context.Background(), Request{Purpose: PurposeChapter, Prompt: "This is Chapter 3."})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(text) < 1000 || len(text) > 4000 {
		t.Fatalf("chapter length = %d, want 1000-4000", len(text))
	}
	if !strings.HasPrefix(text, "Chapter 3") {
		t.Fatalf("chapter text should start with its heading, got %q", text[:20])
	}
	again, _ := gen.Generate(context.Background(), Request{Purpose: PurposeChapter, Prompt: "This is Chapter 3."})
	if again != text {
		t.Fatal("synthetic output should be deterministic for the same prompt")
	}
}

func TestSyntheticComparisonChoosesDraft(t *testing.T) {
	text, err := NewSynthetic().Generate(context.Background(), Request{Purpose: PurposeComparison, Prompt: "compare"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(text, "CHOSEN: Draft A") {
		t.Fatalf("comparison = %q", text)
	}
}
