package repo

import (
	"encoding/json"
	"fmt"
	"time"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
)

// novelRow is the column-level shape shared by the SQL backends. JSON
// documents stay encoded until toDomain.
type novelRow struct {
	ID             string
	OwnerID        string
	Title          string
	Parameters     []byte
	DriveMode      string
	Stage          string
	Status         string
	Outline        []byte
	Chapters       []byte
	ChapterCount   int
	CurrentChapter int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func rowFromDomain(n *domain.Novel) (novelRow, error) {
	params, err := json.Marshal(n.Parameters)
	if err != nil {
		return novelRow{}, fmt.Errorf("encode parameters: %w", err)
	}
	outline, err := json.Marshal(n.Outline)
	if err != nil {
		return novelRow{}, fmt.Errorf("encode outline: %w", err)
	}
	chapters := n.Chapters
	if chapters == nil {
		chapters = []domain.ChapterRecord{}
	}
	chaptersJSON, err := json.Marshal(chapters)
	if err != nil {
		return novelRow{}, fmt.Errorf("encode chapters: %w", err)
	}
	return novelRow{
		ID:             n.ID,
		OwnerID:        n.OwnerID,
		Title:          n.Title,
		Parameters:     params,
		DriveMode:      string(n.DriveMode),
		Stage:          n.Stage.String(),
		Status:         string(n.Status),
		Outline:        outline,
		Chapters:       chaptersJSON,
		ChapterCount:   n.ChapterCount,
		CurrentChapter: n.CurrentChapter,
		LastError:      n.LastError,
		CreatedAt:      n.CreatedAt.UTC(),
		UpdatedAt:      n.UpdatedAt.UTC(),
	}, nil
}

func (r novelRow) toDomain() (*domain.Novel, error) {
	stage, err := checkpoint.ParseStage(r.Stage)
	if err != nil {
		return nil, fmt.Errorf("novel %s: %w", r.ID, err)
	}
	n := &domain.Novel{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Title:          r.Title,
		DriveMode:      domain.DriveMode(r.DriveMode),
		Stage:          stage,
		Status:         checkpoint.Status(r.Status),
		ChapterCount:   r.ChapterCount,
		CurrentChapter: r.CurrentChapter,
		LastError:      r.LastError,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	var params jsoncfg.NovelParameters
	if err := json.Unmarshal(r.Parameters, &params); err != nil {
		return nil, fmt.Errorf("novel %s: decode parameters: %w", r.ID, err)
	}
	n.Parameters = params
	if len(r.Outline) > 0 {
		if err := json.Unmarshal(r.Outline, &n.Outline); err != nil {
			return nil, fmt.Errorf("novel %s: decode outline: %w", r.ID, err)
		}
	}
	if len(r.Chapters) > 0 {
		if err := json.Unmarshal(r.Chapters, &n.Chapters); err != nil {
			return nil, fmt.Errorf("novel %s: decode chapters: %w", r.ID, err)
		}
	}
	return n, nil
}

// pgScanTargets lists destinations in the column order of the select
// statements.
func (r *novelRow) pgScanTargets() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.Title, &r.Parameters, &r.DriveMode, &r.Stage, &r.Status,
		&r.Outline, &r.Chapters, &r.ChapterCount, &r.CurrentChapter, &r.LastError,
		&r.CreatedAt, &r.UpdatedAt,
	}
}
