package domain

import (
	"time"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain/jsoncfg"
)

// DriveMode selects who advances a novel through its stages.
type DriveMode string

const (
	// DriveServer novels are advanced by the worker until completion.
	DriveServer DriveMode = "server"
	// DriveClient novels advance one stage per client request.
	DriveClient DriveMode = "client"
)

// OutlineIteration is one accepted outline text. Iterations are append-only.
type OutlineIteration struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Outline holds the current outline and its revision history.
type Outline struct {
	Status     checkpoint.OutlineStage `json:"status,omitempty"`
	Current    string                  `json:"current,omitempty"`
	Iterations []OutlineIteration      `json:"iterations,omitempty"`
}

// ChapterRecord is the latest accepted text of one chapter.
type ChapterRecord struct {
	Index     int                     `json:"index"`
	Content   string                  `json:"content"`
	Revision  int                     `json:"revision"`
	Stage     checkpoint.ChapterStage `json:"stage"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Novel is a single generation job and everything produced for it so far.
type Novel struct {
	ID             string                  `json:"id"`
	OwnerID        string                  `json:"owner_id"`
	Title          string                  `json:"title"`
	Parameters     jsoncfg.NovelParameters `json:"parameters"`
	DriveMode      DriveMode               `json:"drive_mode"`
	Stage          checkpoint.Stage        `json:"-"`
	Status         checkpoint.Status       `json:"status"`
	Outline        Outline                 `json:"outline"`
	Chapters       []ChapterRecord         `json:"chapters"`
	ChapterCount   int                     `json:"chapter_count"`
	CurrentChapter int                     `json:"current_chapter_index"`
	LastError      string                  `json:"last_error,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// NewNovel builds a fresh record in the initializing state.
func NewNovel(id, ownerID string, params jsoncfg.NovelParameters, mode DriveMode, now time.Time) *Novel {
	if mode == "" {
		mode = DriveServer
	}
	return &Novel{
		ID:         id,
		OwnerID:    ownerID,
		Title:      params.Title,
		Parameters: params,
		DriveMode:  mode,
		Status:     checkpoint.StatusInitializing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy so callers can mutate it without touching the
// original.
func (n *Novel) Clone() *Novel {
	if n == nil {
		return nil
	}
	out := *n
	out.Parameters = n.Parameters.Clone()
	out.Outline.Iterations = append([]OutlineIteration(nil), n.Outline.Iterations...)
	out.Chapters = append([]ChapterRecord(nil), n.Chapters...)
	return &out
}

// Chapter returns the record for chapter index, if drafted.
func (n *Novel) Chapter(index int) (ChapterRecord, bool) {
	if index < 1 || index > len(n.Chapters) {
		return ChapterRecord{}, false
	}
	return n.Chapters[index-1], true
}

// PreviousChapters returns the texts of every chapter before index, in order.
func (n *Novel) PreviousChapters(index int) []string {
	var out []string
	for _, ch := range n.Chapters {
		if ch.Index >= index {
			break
		}
		out = append(out, ch.Content)
	}
	return out
}

// StageKey exposes the persisted stage key in API payloads.
func (n *Novel) StageKey() string { return n.Stage.String() }

// Progress is the read-only snapshot served to clients.
type Progress struct {
	NovelID             string            `json:"novel_id"`
	Status              checkpoint.Status `json:"status"`
	Stage               string            `json:"stage"`
	CurrentChapterIndex int               `json:"current_chapter_index"`
	ChapterCount        int               `json:"chapter_count"`
	Percent             int               `json:"percent"`
	LastError           string            `json:"last_error,omitempty"`
	UpdatedAt           *time.Time        `json:"updated_at,omitempty"`
}

// PendingProgress is reported for ids with no stored record.
func PendingProgress(id string) Progress {
	return Progress{NovelID: id, Status: checkpoint.StatusPending, Stage: checkpoint.Stage{}.String()}
}

// ProgressOf summarizes a stored novel.
func ProgressOf(n *Novel) Progress {
	updated := n.UpdatedAt
	p := Progress{
		NovelID:             n.ID,
		Status:              n.Status,
		Stage:               n.Stage.String(),
		CurrentChapterIndex: n.CurrentChapter,
		ChapterCount:        n.ChapterCount,
		LastError:           n.LastError,
		UpdatedAt:           &updated,
	}
	switch {
	case n.Status == checkpoint.StatusCompleted:
		p.Percent = 100
	case n.ChapterCount > 0:
		p.Percent = checkpoint.CompletedStages(n.Stage) * 100 / checkpoint.TotalStages(n.ChapterCount)
	default:
		// Outline passes weigh a tenth of the run until the chapter count is known.
		p.Percent = checkpoint.CompletedStages(n.Stage) * 10 / checkpoint.TotalStages(0)
	}
	return p
}
