// Package config loads the generation profile: token budgets, temperatures,
// content limits and the retry policy used by the generation pipeline.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"novelforge/internal/checkpoint"
)

// Content limits a profile may tighten but never widen.
const (
	MinOutlineLength = 1000
	MinChapterLength = 1000
	MaxChapterLength = 4000
)

// DefaultProfileYAML documents every knob with its built-in value.
const DefaultProfileYAML = `# novelforge generation profile
retry:
  max_attempts: 3
  delay: 1s

outline:
  max_tokens: 3000
  temperature: 0.7
  min_length: 1000
  max_length: 0        # 0 disables the upper bound
  prompt_limit: 20000
  min_chapters: 10
  max_chapters: 150

chapter:
  max_tokens: 3000
  temperature: 0.7
  min_length: 1000
  max_length: 4000
  prompt_limit: 20000
  dual_draft: false
  comparison_temperature: 0.4
  previous_chapters: 3   # how many earlier chapters are quoted for continuity
`

// RetryProfile bounds attempts for each stage.
type RetryProfile struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// OutlineProfile configures the outline track.
type OutlineProfile struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MinLength   int     `yaml:"min_length"`
	MaxLength   int     `yaml:"max_length"`
	PromptLimit int     `yaml:"prompt_limit"`
	MinChapters int     `yaml:"min_chapters"`
	MaxChapters int     `yaml:"max_chapters"`
}

// ChapterProfile configures every chapter track.
type ChapterProfile struct {
	MaxTokens             int     `yaml:"max_tokens"`
	Temperature           float64 `yaml:"temperature"`
	MinLength             int     `yaml:"min_length"`
	MaxLength             int     `yaml:"max_length"`
	PromptLimit           int     `yaml:"prompt_limit"`
	DualDraft             bool    `yaml:"dual_draft"`
	ComparisonTemperature float64 `yaml:"comparison_temperature"`
	PreviousChapters      int     `yaml:"previous_chapters"`
}

// Profile is the full generation profile.
type Profile struct {
	Retry   RetryProfile   `yaml:"retry"`
	Outline OutlineProfile `yaml:"outline"`
	Chapter ChapterProfile `yaml:"chapter"`
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() Profile {
	var p Profile
	if err := yaml.Unmarshal([]byte(DefaultProfileYAML), &p); err != nil {
		panic(fmt.Errorf("config: default profile: %w", err))
	}
	return p
}

// LoadProfile overlays the YAML file at path onto the defaults. An empty path
// or a missing file yields the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return Profile{}, fmt.Errorf("config: read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("config: parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate rejects profiles that could never accept any generated text, and
// profiles that loosen the published content limits: chapter counts stay
// inside checkpoint.DefaultBounds, outlines are at least MinOutlineLength
// characters and chapter lengths stay inside [MinChapterLength, MaxChapterLength].
func (p Profile) Validate() error {
	bounds := checkpoint.DefaultBounds
	switch {
	case p.Retry.MaxAttempts < 1:
		return errors.New("config: retry.max_attempts must be at least 1")
	case p.Retry.Delay <= 0:
		return errors.New("config: retry.delay must be positive")
	case p.Outline.MinLength < MinOutlineLength:
		return fmt.Errorf("config: outline.min_length must be at least %d", MinOutlineLength)
	case p.Outline.MaxLength != 0 && p.Outline.MaxLength < p.Outline.MinLength:
		return errors.New("config: outline.max_length must exceed outline.min_length")
	case p.Outline.MaxChapters < p.Outline.MinChapters:
		return errors.New("config: outline chapter bounds are inconsistent")
	case p.Outline.MinChapters < bounds.Min || p.Outline.MaxChapters > bounds.Max:
		return fmt.Errorf("config: outline chapter bounds must lie within [%d, %d]", bounds.Min, bounds.Max)
	case p.Chapter.MaxLength < p.Chapter.MinLength:
		return errors.New("config: chapter length bounds are inconsistent")
	case p.Chapter.MinLength < MinChapterLength || p.Chapter.MaxLength > MaxChapterLength:
		return fmt.Errorf("config: chapter lengths must lie within [%d, %d]", MinChapterLength, MaxChapterLength)
	case p.Outline.MaxTokens < 1 || p.Chapter.MaxTokens < 1:
		return errors.New("config: max_tokens must be positive")
	case p.Outline.PromptLimit < 1 || p.Chapter.PromptLimit < 1:
		return errors.New("config: prompt_limit must be positive")
	}
	return nil
}
