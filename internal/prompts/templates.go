// Package prompts assembles the instructions sent to the text generator for
// each stage of a novel.
package prompts

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain/jsoncfg"
)

// Choice is the verdict of a draft comparison.
type Choice string

const (
	ChoiceDraftA Choice = "draft_a"
	ChoiceDraftB Choice = "draft_b"
	ChoiceRefine Choice = "refine"
)

var choiceRegexp = regexp.MustCompile(`(?i)CHOSEN:\s*(Draft A|Draft B|Refined Version Needed)`)

// Outline asks for the first full outline.
func Outline(p jsoncfg.NovelParameters) string {
	return fmt.Sprintf(`%s
You are a world-class author creating a detailed novel outline based on the following parameters.

%s
Target chapter count: %d

Your task:
- Produce a very detailed outline covering the entire novel, from start to end.
- Open with a "Synopsis" section and a "Characters" section.
- Label every chapter as "Chapter <number>: <title>" on its own line, numbered from 1 without gaps.
- Describe each chapter's key events, character developments, conflicts and thematic progression.
%s`, outlineNotes(p), parametersAsText(p), p.RecommendedChapters(), languageLine(p))
}

// OutlineRevision asks for a refined outline. pass is 1 or 2.
func OutlineRevision(p jsoncfg.NovelParameters, current string, pass int) string {
	target := checkpoint.CountChapterMarkers(current)
	if target == 0 {
		target = p.RecommendedChapters()
	}
	focus := "Strengthen causality between chapters and make every character arc visible in the chapter beats."
	if pass >= 2 {
		focus = "Polish pacing and foreshadowing, and make sure the ending resolves every thread the outline opens."
	}
	return fmt.Sprintf(`%s
Revise the novel outline below (revision pass %d).
Focus: %s
Keep the "Chapter <number>: <title>" labels and the numbering.
Target chapter count: %d

Parameters:
%s
CURRENT OUTLINE:
%s

Output only the full revised outline.
%s`, refinementNotes(p), pass, focus, target, parametersAsText(p), current, languageLine(p))
}

// ChapterDraft asks for the first draft of chapter n. previous holds the texts
// of the chapters immediately before n, oldest first.
func ChapterDraft(p jsoncfg.NovelParameters, segment string, previous []string, n int) string {
	var prev strings.Builder
	first := n - len(previous)
	for i, text := range previous {
		fmt.Fprintf(&prev, "CHAPTER %d:\n%s\n\n", first+i, text)
	}
	prevText := strings.TrimSpace(prev.String())
	if prevText == "" {
		prevText = "None so far"
	}
	if strings.TrimSpace(segment) == "" {
		segment = fmt.Sprintf("Chapter %d (no dedicated outline entry; continue the story naturally)", n)
	}
	return fmt.Sprintf(`%s
You are continuing to write a top-tier novel following the given outline and parameters. Plan the chapter internally and output only the chapter text.

Context:
- This is Chapter %d.
- Outline snippet for this chapter:
%s

Previously written chapters (for continuity):
%s

Parameters:
%s
Instructions:
1. Produce a single coherent chapter that matches the style and themes (about %d words).
2. Start with the heading "Chapter %d".
3. No explanations in the output. Only the chapter text.
%s`, chapterNotes(p, n), n, segment, prevText, parametersAsText(p), p.AverageChapterLength, n, languageLine(p))
}

// ChapterRevision asks for a revised chapter. pass is 1 or 2.
func ChapterRevision(p jsoncfg.NovelParameters, current, segment string, n, pass int) string {
	focus := "Tighten prose, sharpen dialogue and keep every event of the outline snippet."
	if pass >= 2 {
		focus = "Final polish: rhythm, imagery and continuity with earlier chapters. Change nothing structural."
	}
	return fmt.Sprintf(`%s
This is Chapter %d. Revise it (revision pass %d).
Focus: %s

Outline snippet:
%s

CURRENT CHAPTER:
%s

Rewrite the chapter. Output only the improved chapter text, starting with the heading "Chapter %d".
%s`, refinementNotes(p), n, pass, focus, segment, current, n, languageLine(p))
}

// Comparison asks the model to pick between two drafts of the same chapter.
func Comparison(draftA, draftB string) string {
	return fmt.Sprintf(`You have two chapter drafts (Draft A and Draft B) for the same chapter. Your task:
- Compare both drafts.
- Identify which is superior in narrative coherence, thematic depth, character consistency and alignment with the instructions.
- If one is clearly better, choose it.
- If both have strengths, ask for a refined combined version and give improvement instructions.
- End with "CHOSEN: Draft A", "CHOSEN: Draft B", or "CHOSEN: Refined Version Needed".

Draft A:
%s

Draft B:
%s
`, draftA, draftB)
}

// Refinement asks for a rewrite of the chosen draft guided by a critique.
func Refinement(p jsoncfg.NovelParameters, chosen, critique string, n int) string {
	return fmt.Sprintf(`%s
This is Chapter %d. Produce a refined version of the chapter based on the critique and improvement instructions.

Selected Draft:
%s

Critique / Instructions:
%s

Rewrite the chapter, incorporating improvements. Output only the improved chapter text.
%s`, refinementNotes(p), n, chosen, critique, languageLine(p))
}

// ParseChoice reads the verdict of a comparison. A response without a verdict
// keeps Draft A.
func ParseChoice(text string) Choice {
	m := choiceRegexp.FindAllStringSubmatch(text, -1)
	if len(m) == 0 {
		return ChoiceDraftA
	}
	switch strings.ToLower(m[len(m)-1][1]) {
	case "draft b":
		return ChoiceDraftB
	case "refined version needed":
		return ChoiceRefine
	default:
		return ChoiceDraftA
	}
}

// Truncate caps a prompt at limit bytes without splitting a UTF-8 sequence.
func Truncate(prompt string, limit int) string {
	if limit <= 0 || len(prompt) <= limit {
		return prompt
	}
	cut := limit
	for cut > 0 && !isRuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func outlineNotes(p jsoncfg.NovelParameters) string {
	description := "no specific user description"
	if strings.TrimSpace(p.StoryDescription) != "" {
		description = "user story description details"
	}
	return fmt.Sprintf(`[INTEGRATION NOTES - OUTLINE]
- Novel Length: %s
- Genre: %s, Themes: %s.
- Story Structure: %s (turning points: %s)
- Setting: %s, World Complexity: %d, Cultural Depth: %d, Framework: %s.
- Characters: reflect archetypes and arcs in the outline.
- Pacing, emotional intensity and style as per parameters.
- Integrate %s.
`, p.NovelLength, joinPair(p.PrimaryGenre, p.SecondaryGenre), joinPair(p.PrimaryTheme, p.SecondaryTheme),
		p.StoryStructure, strings.Join(TurningPoints(p.StoryStructure), ", "),
		p.SettingType, p.WorldComplexity, p.CulturalDepth, p.CulturalFramework, description)
}

func chapterNotes(p jsoncfg.NovelParameters, n int) string {
	return fmt.Sprintf(`[INTEGRATION NOTES - CHAPTER %d]
- Genre/Themes: %s, %s.
- Pacing: Overall %d, Variance %d.
- Emotional Intensity: %d, Metaphors: %d, Flashbacks: %d, Foreshadowing: %d.
- Language: Complexity %d, Sentence Structure: %s, Paragraph Length: %s.
- Content Controls: Violence %d, Adult %d, Profanity %d, Controversial: %s.
- POV: %s, Tone Formality %d, Descriptive %d, Dialogue %d.
`, n, p.PrimaryGenre, p.PrimaryTheme, p.PacingOverall, p.PacingVariance,
		p.EmotionalIntensity, p.MetaphorFrequency, p.FlashbackUsage, p.ForeshadowingIntensity,
		p.LanguageComplexity, p.SentenceStructure, p.ParagraphLength,
		p.ViolenceLevel, p.AdultContentLevel, p.ProfanityLevel, p.ControversialHandling,
		humanize(p, p.POV), p.ToneFormality, p.ToneDescriptive, p.DialogueBalance)
}

func refinementNotes(p jsoncfg.NovelParameters) string {
	return fmt.Sprintf(`[INTEGRATION NOTES - REFINEMENT]
- Adjust language complexity to %d.
- Respect content controls: Violence %d, Adult %d, Profanity %d, Controversial: %s.
- Enhance thematic and structural consistency if needed.
- Maintain genre and thematic depth.
`, p.LanguageComplexity, p.ViolenceLevel, p.AdultContentLevel, p.ProfanityLevel, p.ControversialHandling)
}

func parametersAsText(p jsoncfg.NovelParameters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Core**\n- Title: %s\n- Length: %s\n- Chapter Structure: %s\n- Avg Chapter Length: %d\n- Chapter Naming: %s\n\n",
		p.Title, p.NovelLength, p.ChapterStructure, p.AverageChapterLength, p.ChapterNamingStyle)
	fmt.Fprintf(&b, "**Genre & Themes**\n- Primary Genre: %s\n- Secondary Genre: %s\n- Primary Theme: %s\n- Secondary Theme: %s\n\n",
		p.PrimaryGenre, orNone(p.SecondaryGenre), p.PrimaryTheme, orNone(p.SecondaryTheme))
	b.WriteString("**Characters**\n")
	for i, c := range p.Characters {
		fmt.Fprintf(&b, "Character %d: %s, %s, %s, %s, Arc: %s", i+1, c.Name, humanize(p, c.Role), c.Archetype, c.AgeRange, humanize(p, c.ArcType))
		if len(c.Relationships) > 0 {
			fmt.Fprintf(&b, ", Rel: %s", strings.Join(c.Relationships, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n**Setting**\n- Type: %s\n- World Complexity: %d/5\n- Cultural Depth: %d/5\n- Cultural Framework: %s\n\n",
		p.SettingType, p.WorldComplexity, p.CulturalDepth, p.CulturalFramework)
	fmt.Fprintf(&b, "**Narrative Foundation**\n- POV: %s\n- Tone Formality: %d/5\n- Tone Descriptive: %d/5\n- Dialogue Balance: %d/5\n\n",
		humanize(p, p.POV), p.ToneFormality, p.ToneDescriptive, p.DialogueBalance)
	conflicts := make([]string, 0, len(p.ConflictTypes))
	for _, c := range p.ConflictTypes {
		conflicts = append(conflicts, humanize(p, c))
	}
	fmt.Fprintf(&b, "**Plot**\n- Structure: %s\n- Conflicts: %s\n- Resolution: %s\n\n",
		p.StoryStructure, strings.Join(conflicts, ", "), p.ResolutionStyle)
	fmt.Fprintf(&b, "**Style Controls**\n- Description Density: %d/5\n- Pacing Overall: %d/5\n- Pacing Variance: %d/5\n- Emotional Intensity: %d/5\n- Metaphor Frequency: %d/5\n- Flashbacks: %d/5\n- Foreshadowing: %d/5\n\n",
		p.DescriptionDensity, p.PacingOverall, p.PacingVariance, p.EmotionalIntensity, p.MetaphorFrequency, p.FlashbackUsage, p.ForeshadowingIntensity)
	fmt.Fprintf(&b, "**Technical**\n- Language Complexity: %d/5\n- Sentence Structure: %s\n- Paragraph Length: %s\n\n",
		p.LanguageComplexity, humanize(p, p.SentenceStructure), humanize(p, p.ParagraphLength))
	fmt.Fprintf(&b, "**Content**\n- Violence: %d/5\n- Adult Content: %d/5\n- Profanity: %d/5\n- Controversial: %s\n\n",
		p.ViolenceLevel, p.AdultContentLevel, p.ProfanityLevel, humanize(p, p.ControversialHandling))
	if d := strings.TrimSpace(p.StoryDescription); d != "" {
		fmt.Fprintf(&b, "**Description**\n%s\n", d)
	}
	return b.String()
}

// TurningPoints lists the beats implied by a story structure name.
func TurningPoints(structure string) []string {
	s := strings.ToLower(structure)
	switch {
	case strings.Contains(s, "three-act"), strings.Contains(s, "three act"):
		return []string{"Inciting Incident", "First Plot Point", "Midpoint", "Second Plot Point", "Climax"}
	case strings.Contains(s, "hero"):
		return []string{"Call to Adventure", "Crossing the Threshold", "Tests and Allies", "Approach to Inmost Cave", "Ordeal", "Road Back", "Resurrection", "Return with Elixir"}
	default:
		return []string{"Opening", "Rising Action", "Climax", "Resolution"}
	}
}

// languageLine names the narrative language when it is not English.
func languageLine(p jsoncfg.NovelParameters) string {
	tag, err := language.Parse(p.Language)
	if err != nil || tag == language.English {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" {
		return ""
	}
	return fmt.Sprintf("Write the entire text in %s.\n", display.English.Languages().Name(tag))
}

func humanize(p jsoncfg.NovelParameters, v string) string {
	return cases.Title(language.Make(p.Language)).String(strings.ReplaceAll(v, "_", " "))
}

func joinPair(primary, secondary string) string {
	if strings.TrimSpace(secondary) == "" {
		return primary
	}
	return primary + " + " + secondary
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "None"
	}
	return v
}
