package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/storage"
	"novelforge/pkg/zip"
)

// Manuscript formats served for completed novels.
const (
	FormatText = "txt"
	FormatZip  = "zip"
)

// RenderManuscript joins the title and every chapter into one plain-text
// document. Only completed novels can be rendered.
func RenderManuscript(n *domain.Novel) ([]byte, error) {
	if n.Status != checkpoint.StatusCompleted {
		return nil, domain.ErrNotCompleted
	}
	var b strings.Builder
	b.WriteString(n.Title)
	b.WriteString("\n\n")
	for _, ch := range n.Chapters {
		b.WriteString(strings.TrimSpace(ch.Content))
		b.WriteString("\n\n")
	}
	return []byte(strings.TrimRight(b.String(), "\n") + "\n"), nil
}

// BundleManuscript packs the manuscript, the final outline, one file per
// chapter and the generation parameters into a zip archive.
func BundleManuscript(n *domain.Novel) ([]byte, error) {
	text, err := RenderManuscript(n)
	if err != nil {
		return nil, err
	}
	params, err := json.MarshalIndent(n.Parameters, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	modified := n.UpdatedAt
	files := []zip.File{
		{Name: "manuscript.txt", Modified: modified, Data: text},
		{Name: "outline.txt", Modified: modified, Data: []byte(n.Outline.Current)},
		{Name: "parameters.json", Modified: modified, Data: params},
	}
	for _, ch := range n.Chapters {
		files = append(files, zip.File{
			Name:     fmt.Sprintf("chapters/chapter-%03d.txt", ch.Index),
			Modified: ch.UpdatedAt,
			Data:     []byte(ch.Content),
		})
	}
	return zip.Bundle(files)
}

// ManuscriptKey is the object key a novel's bundle is exported under.
func ManuscriptKey(n *domain.Novel) string {
	return fmt.Sprintf("manuscripts/%s/%s.zip", n.OwnerID, n.ID)
}

// StorageExporter writes the manuscript bundle of completed novels to an
// object store.
type StorageExporter struct {
	store storage.ObjectStore
}

func NewStorageExporter(store storage.ObjectStore) *StorageExporter {
	return &StorageExporter{store: store}
}

func (e *StorageExporter) Export(ctx context.Context, n *domain.Novel) (string, error) {
	data, err := BundleManuscript(n)
	if err != nil {
		return "", err
	}
	return e.store.Write(ctx, ManuscriptKey(n), data, "application/zip")
}

// DownloadURL links to an exported bundle.
func (e *StorageExporter) DownloadURL(ctx context.Context, n *domain.Novel, expiry time.Duration) (string, error) {
	return e.store.URL(ctx, ManuscriptKey(n), expiry)
}

var _ Exporter = (*StorageExporter)(nil)
