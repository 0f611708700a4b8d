package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Character struct {
	Name                string   `json:"name"`
	Role                string   `json:"role"`
	Archetype           string   `json:"archetype"`
	AgeRange            string   `json:"age_range"`
	BackgroundArchetype string   `json:"background_archetype"`
	ArcType             string   `json:"arc_type"`
	Relationships       []string `json:"relationships"`
}

// ProcessedMetrics is an optional planning block supplied by richer clients.
type ProcessedMetrics struct {
	StoryWeight         float64           `json:"story_weight"`
	RecommendedChapters int               `json:"recommended_chapters"`
	SubplotDistribution []json.RawMessage `json:"subplot_distribution"`
	CharacterGuidance   []json.RawMessage `json:"character_guidance"`
}

// NovelParameters is the immutable generation contract captured at creation.
type NovelParameters struct {
	Version                string            `json:"version"`
	Title                  string            `json:"title"`
	Language               string            `json:"language"`
	NovelLength            string            `json:"novel_length"`
	ChapterStructure       string            `json:"chapter_structure"`
	AverageChapterLength   int               `json:"average_chapter_length"`
	ChapterNamingStyle     string            `json:"chapter_naming_style"`
	PrimaryGenre           string            `json:"primary_genre"`
	SecondaryGenre         string            `json:"secondary_genre,omitempty"`
	PrimaryTheme           string            `json:"primary_theme"`
	SecondaryTheme         string            `json:"secondary_theme,omitempty"`
	Characters             []Character       `json:"characters"`
	SettingType            string            `json:"setting_type"`
	WorldComplexity        int               `json:"world_complexity"`
	CulturalDepth          int               `json:"cultural_depth"`
	CulturalFramework      string            `json:"cultural_framework"`
	POV                    string            `json:"pov"`
	ToneFormality          int               `json:"tone_formality"`
	ToneDescriptive        int               `json:"tone_descriptive"`
	DialogueBalance        int               `json:"dialogue_balance"`
	StoryStructure         string            `json:"story_structure"`
	ConflictTypes          []string          `json:"conflict_types"`
	ResolutionStyle        string            `json:"resolution_style"`
	DescriptionDensity     int               `json:"description_density"`
	PacingOverall          int               `json:"pacing_overall"`
	PacingVariance         int               `json:"pacing_variance"`
	EmotionalIntensity     int               `json:"emotional_intensity"`
	MetaphorFrequency      int               `json:"metaphor_frequency"`
	FlashbackUsage         int               `json:"flashback_usage"`
	ForeshadowingIntensity int               `json:"foreshadowing_intensity"`
	LanguageComplexity     int               `json:"language_complexity"`
	SentenceStructure      string            `json:"sentence_structure"`
	ParagraphLength        string            `json:"paragraph_length"`
	ViolenceLevel          int               `json:"violence_level"`
	AdultContentLevel      int               `json:"adult_content_level"`
	ProfanityLevel         int               `json:"profanity_level"`
	ControversialHandling  string            `json:"controversial_handling"`
	StoryDescription       string            `json:"story_description"`
	ProcessedMetrics       *ProcessedMetrics `json:"processed_metrics,omitempty"`
}

const (
	// DefaultParametersVersion is the schema version persisted with parameters.
	DefaultParametersVersion = "2024-06"
	DefaultLanguage          = "en"
	DefaultNovelLength       = "50k-100k"
	DefaultChapterStructure  = "variable"
	DefaultChapterLength     = 2500
	DefaultNamingStyle       = "both"
	DefaultSettingType       = "Contemporary"
	DefaultCulturalFramework = "Western"
	DefaultPOV               = "third_limited"
	DefaultStoryStructure    = "Three-Act Structure"
	DefaultConflictType      = "person_vs_self"
	DefaultResolutionStyle   = "Conclusive"
	DefaultSentenceStructure = "varied"
	DefaultParagraphLength   = "medium"
	DefaultControversial     = "careful"

	// SliderMin and SliderMax bound every 1-5 style control.
	SliderMin     = 1
	SliderMax     = 5
	SliderDefault = 3
)

var (
	allowedNovelLengths   = []string{"50k-100k", "100k-150k", "150k+"}
	allowedPOV            = []string{"first", "third_limited", "third_omniscient", "multiple"}
	allowedSentence       = []string{"varied", "consistent", "simple", "complex"}
	allowedParagraph      = []string{"short", "medium", "long"}
	allowedControversial  = []string{"avoid", "careful", "direct"}
	allowedCharacterRoles = []string{"protagonist", "antagonist", "supporting"}
	allowedArcTypes       = []string{"redemption", "fall", "coming_of_age", "internal_discovery", "static"}
)

// FieldError names the parameter that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + " " + e.Message }

func fieldErr(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// slider pairs a 1-5 control with its default.
type slider struct {
	name  string
	value *int
	def   int
}

func (p *NovelParameters) sliders() []slider {
	return []slider{
		{"world_complexity", &p.WorldComplexity, SliderDefault},
		{"cultural_depth", &p.CulturalDepth, SliderDefault},
		{"tone_formality", &p.ToneFormality, SliderDefault},
		{"tone_descriptive", &p.ToneDescriptive, SliderDefault},
		{"dialogue_balance", &p.DialogueBalance, SliderDefault},
		{"description_density", &p.DescriptionDensity, SliderDefault},
		{"pacing_overall", &p.PacingOverall, SliderDefault},
		{"pacing_variance", &p.PacingVariance, SliderDefault},
		{"emotional_intensity", &p.EmotionalIntensity, SliderDefault},
		{"metaphor_frequency", &p.MetaphorFrequency, SliderDefault},
		{"flashback_usage", &p.FlashbackUsage, 2},
		{"foreshadowing_intensity", &p.ForeshadowingIntensity, SliderDefault},
		{"language_complexity", &p.LanguageComplexity, SliderDefault},
		{"violence_level", &p.ViolenceLevel, 2},
		{"adult_content_level", &p.AdultContentLevel, 1},
		{"profanity_level", &p.ProfanityLevel, 1},
	}
}

// Normalize fills defaults and resets out-of-range sliders to the midpoint.
// It returns the names of fields that were reset so callers can log them.
func (p *NovelParameters) Normalize(preferredLanguage string) []string {
	if p == nil {
		return nil
	}
	p.Title = strings.TrimSpace(p.Title)
	p.PrimaryGenre = strings.TrimSpace(p.PrimaryGenre)
	p.PrimaryTheme = strings.TrimSpace(p.PrimaryTheme)
	if p.Version == "" {
		p.Version = DefaultParametersVersion
	}
	if p.Language == "" {
		p.Language = coalesce(preferredLanguage, DefaultLanguage)
	}
	p.NovelLength = coalesce(p.NovelLength, DefaultNovelLength)
	p.ChapterStructure = coalesce(p.ChapterStructure, DefaultChapterStructure)
	if p.AverageChapterLength <= 0 {
		p.AverageChapterLength = DefaultChapterLength
	}
	p.ChapterNamingStyle = coalesce(p.ChapterNamingStyle, DefaultNamingStyle)
	p.SettingType = coalesce(p.SettingType, DefaultSettingType)
	p.CulturalFramework = coalesce(p.CulturalFramework, DefaultCulturalFramework)
	p.POV = coalesce(p.POV, DefaultPOV)
	p.StoryStructure = coalesce(p.StoryStructure, DefaultStoryStructure)
	p.ResolutionStyle = coalesce(p.ResolutionStyle, DefaultResolutionStyle)
	p.SentenceStructure = coalesce(p.SentenceStructure, DefaultSentenceStructure)
	p.ParagraphLength = coalesce(p.ParagraphLength, DefaultParagraphLength)
	p.ControversialHandling = coalesce(p.ControversialHandling, DefaultControversial)
	if len(p.ConflictTypes) == 0 {
		p.ConflictTypes = []string{DefaultConflictType}
	}
	if len(p.Characters) == 0 {
		p.Characters = []Character{{
			Name:                "Protagonist",
			Role:                "protagonist",
			Archetype:           "The Hero",
			AgeRange:            "young adult",
			BackgroundArchetype: "ordinary world",
			ArcType:             "coming_of_age",
			Relationships:       []string{},
		}}
	}

	var reset []string
	for _, s := range p.sliders() {
		switch {
		case *s.value == 0:
			*s.value = s.def
		case *s.value < SliderMin || *s.value > SliderMax:
			*s.value = SliderDefault
			reset = append(reset, s.name)
		}
	}
	return reset
}

// Validate checks required fields and enumerations after Normalize.
func (p NovelParameters) Validate() error {
	if p.Title == "" {
		return fieldErr("title", "is required")
	}
	if p.PrimaryGenre == "" {
		return fieldErr("primary_genre", "is required")
	}
	if p.PrimaryTheme == "" {
		return fieldErr("primary_theme", "is required")
	}
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"novel_length", p.NovelLength, allowedNovelLengths},
		{"pov", p.POV, allowedPOV},
		{"sentence_structure", p.SentenceStructure, allowedSentence},
		{"paragraph_length", p.ParagraphLength, allowedParagraph},
		{"controversial_handling", p.ControversialHandling, allowedControversial},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return fieldErr(c.field, "must be one of %s", strings.Join(c.allowed, ", "))
		}
	}
	for i, ch := range p.Characters {
		if strings.TrimSpace(ch.Name) == "" {
			return fieldErr(fmt.Sprintf("characters[%d].name", i), "is required")
		}
		if ch.Role != "" && !contains(allowedCharacterRoles, ch.Role) {
			return fieldErr(fmt.Sprintf("characters[%d].role", i), "must be one of %s", strings.Join(allowedCharacterRoles, ", "))
		}
		if ch.ArcType != "" && !contains(allowedArcTypes, ch.ArcType) {
			return fieldErr(fmt.Sprintf("characters[%d].arc_type", i), "must be one of %s", strings.Join(allowedArcTypes, ", "))
		}
	}
	if m := p.ProcessedMetrics; m != nil {
		if m.StoryWeight < 0 || m.StoryWeight > 10 {
			return fieldErr("processed_metrics.story_weight", "must be between 0 and 10")
		}
		if m.RecommendedChapters < 10 || m.RecommendedChapters > 150 {
			return fieldErr("processed_metrics.recommended_chapters", "must be between 10 and 150")
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with p.
func (p NovelParameters) Clone() NovelParameters {
	out := p
	out.ConflictTypes = append([]string(nil), p.ConflictTypes...)
	out.Characters = make([]Character, len(p.Characters))
	for i, ch := range p.Characters {
		ch.Relationships = append([]string(nil), ch.Relationships...)
		out.Characters[i] = ch
	}
	if p.ProcessedMetrics != nil {
		m := *p.ProcessedMetrics
		out.ProcessedMetrics = &m
	}
	return out
}

// RecommendedChapters is the chapter target suggested to the outline prompt.
func (p NovelParameters) RecommendedChapters() int {
	if p.ProcessedMetrics != nil && p.ProcessedMetrics.RecommendedChapters > 0 {
		return p.ProcessedMetrics.RecommendedChapters
	}
	n := 12 + 2*len(p.Characters)
	if n > 30 {
		n = 30
	}
	return n
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
