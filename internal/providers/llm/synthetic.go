package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Purpose tells a generator which kind of text a prompt asks for.
type Purpose string

const (
	PurposeOutline       Purpose = "outline"
	PurposeOutlineRefine Purpose = "outline_refine"
	PurposeChapter       Purpose = "chapter"
	PurposeChapterRefine Purpose = "chapter_refine"
	PurposeComparison    Purpose = "comparison"
)

const syntheticProviderName = "synthetic"

var (
	targetChaptersRegexp = regexp.MustCompile(`(?i)target chapter count:\s*(\d+)`)
	chapterNumberRegexp  = regexp.MustCompile(`(?i)this is chapter\s+(\d+)`)
)

var syntheticSentences = []string{
	"The wind carried the smell of salt and old iron across the square.",
	"Nobody in the village admitted to hearing the bells that night.",
	"She counted the steps twice, as if the staircase might lie to her.",
	"Somewhere below, a door closed with the patience of a held breath.",
	"He had rehearsed the apology so often that it no longer sounded like his.",
	"Light pooled on the table where the map had been unrolled and forgotten.",
	"The letter was shorter than she expected, and far more dangerous.",
	"Rain turned the road to a mirror that showed nothing she wanted to see.",
}

// Synthetic produces deterministic placeholder prose that satisfies the
// pipeline's content checks. It is used when no provider key is configured.
type Synthetic struct{}

func NewSynthetic() *Synthetic { return &Synthetic{} }

func (s *Synthetic) Name() string { return syntheticProviderName }

func (s *Synthetic) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := deterministicSeed(req.Prompt, req.Purpose)
	switch req.Purpose {
	case PurposeOutline, PurposeOutlineRefine:
		n := 12
		if m := targetChaptersRegexp.FindStringSubmatch(req.Prompt); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				n = v
			}
		}
		return syntheticOutline(n, seed, req.Purpose == PurposeOutlineRefine), nil
	case PurposeComparison:
		return "Draft A keeps the outline beats and the established voice.\nCHOSEN: Draft A", nil
	default:
		chapter := 1
		if m := chapterNumberRegexp.FindStringSubmatch(req.Prompt); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				chapter = v
			}
		}
		return syntheticChapter(chapter, seed, 1800), nil
	}
}

func syntheticOutline(chapters int, seed string, revised bool) string {
	var b strings.Builder
	b.WriteString("Synopsis\n")
	b.WriteString(paragraph(seed, 6))
	b.WriteString("\n\nCharacters\n")
	b.WriteString(paragraph(seed+"c", 3))
	b.WriteString("\n\n")
	for i := 1; i <= chapters; i++ {
		fmt.Fprintf(&b, "Chapter %d: %s\n", i, syntheticSentences[(i+int(seed[0]))%len(syntheticSentences)])
		b.WriteString(paragraph(seed+strconv.Itoa(i), 2))
		b.WriteString("\n\n")
	}
	if revised {
		b.WriteString("Revision notes: tightened pacing and sharpened each turning point.\n")
	}
	return b.String()
}

func syntheticChapter(n int, seed string, length int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter %d\n\n", n)
	for i := 0; b.Len() < length; i++ {
		b.WriteString(paragraph(seed+strconv.Itoa(i), 4))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func paragraph(seed string, sentences int) string {
	parts := make([]string, 0, sentences)
	for i := 0; i < sentences; i++ {
		idx := int(seed[i%len(seed)]) + i
		parts = append(parts, syntheticSentences[idx%len(syntheticSentences)])
	}
	return strings.Join(parts, " ")
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ Generator = (*Synthetic)(nil)
