package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/generation"
)

var filenameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Manuscript streams the finished novel as plain text or as a zip bundle.
func (a *App) Manuscript(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = generation.FormatText
	}

	var (
		body        []byte
		err         error
		contentType string
	)
	switch format {
	case generation.FormatText:
		body, err = generation.RenderManuscript(n)
		contentType = "text/plain; charset=utf-8"
	case generation.FormatZip:
		body, err = generation.BundleManuscript(n)
		contentType = "application/zip"
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "format must be txt or zip")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, manuscriptFilename(n), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ManuscriptLink returns a time-limited link to the exported bundle.
func (a *App) ManuscriptLink(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	if a.Links == nil {
		a.error(w, http.StatusNotFound, "not_found", "manuscript export is disabled")
		return
	}
	if n.Status != checkpoint.StatusCompleted {
		a.fail(w, r, domain.ErrNotCompleted)
		return
	}
	url, err := a.Links.DownloadURL(r.Context(), n, a.LinkExpiry)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"novel_id":           n.ID,
		"url":                url,
		"expires_in_seconds": int(a.LinkExpiry.Seconds()),
	})
}

func manuscriptFilename(n *domain.Novel) string {
	name := strings.Trim(filenameUnsafe.ReplaceAllString(strings.ToLower(n.Title), "-"), "-")
	if name == "" {
		return "novel-" + n.ID
	}
	if len(name) > 80 {
		name = strings.TrimRight(name[:80], "-")
	}
	return name
}
