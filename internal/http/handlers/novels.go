package handlers

import (
	"errors"
	"net/http"
	"strings"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
	"novelforge/internal/generation"
	"novelforge/internal/middleware"
)

type createNovelRequest struct {
	Parameters jsoncfg.NovelParameters `json:"parameters"`
	DriveMode  domain.DriveMode        `json:"drive_mode"`
}

type createNovelResponse struct {
	NovelID   string            `json:"novel_id"`
	Status    checkpoint.Status `json:"status"`
	DriveMode domain.DriveMode  `json:"drive_mode"`
	Queued    bool              `json:"queued"`
}

type novelResponse struct {
	*domain.Novel
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

type generateResponse struct {
	NovelID string `json:"novel_id"`
	TaskID  string `json:"task_id,omitempty"`
	Status  string `json:"status"`
}

func (a *App) CreateNovel(w http.ResponseWriter, r *http.Request) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return
	}
	var req createNovelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	n, err := a.Service.Create(r.Context(), generation.CreateInput{
		OwnerID:    owner,
		Parameters: req.Parameters,
		DriveMode:  domain.DriveMode(strings.ToLower(string(req.DriveMode))),
		Language:   middleware.LanguageFromContext(r.Context()),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := createNovelResponse{NovelID: n.ID, Status: n.Status, DriveMode: n.DriveMode}
	if n.DriveMode == domain.DriveServer {
		// The novel is stored either way; a failed enqueue is recovered by
		// POST /generate.
		if _, err := a.Queue.EnqueueDrive(r.Context(), n.ID); err != nil {
			a.Logger.Warn().Err(err).Str("novel_id", n.ID).Msg("http: enqueue new novel failed")
		} else {
			resp.Queued = true
		}
	}
	a.json(w, http.StatusCreated, resp)
}

func (a *App) GetNovel(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, novelResponse{Novel: n, Stage: n.Stage.String(), Percent: domain.ProgressOf(n).Percent})
}

func (a *App) DeleteNovel(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	if err := a.Service.Delete(r.Context(), n.ID, n.OwnerID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NovelProgress never triggers generation. Unknown ids, and ids owned by
// someone else, report the pending default.
func (a *App) NovelProgress(w http.ResponseWriter, r *http.Request) {
	progress, ok := a.loadOwnedOrPending(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, progress)
}

func (a *App) loadOwnedOrPending(w http.ResponseWriter, r *http.Request) (domain.Progress, bool) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return domain.Progress{}, false
	}
	id := chiParam(r)
	n, err := a.Service.Get(r.Context(), id, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PendingProgress(id), true
		}
		a.fail(w, r, err)
		return domain.Progress{}, false
	}
	return domain.ProgressOf(n), true
}

// AdvanceNovel runs exactly one stage for client-driven callers and answers
// with the resulting progress.
func (a *App) AdvanceNovel(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	res, err := a.Steps.Step(r.Context(), n.ID)
	if err != nil {
		var failure *generation.StageFailure
		if errors.As(err, &failure) || errors.Is(err, generation.ErrNovelFailed) {
			a.failedNovel(w, r, n.ID, err)
			return
		}
		a.fail(w, r, err)
		return
	}
	progress, err := a.Progress.Progress(r.Context(), n.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("X-Step-Outcome", res.Outcome.String())
	a.json(w, http.StatusOK, progress)
}

// failedNovel answers 409 with the stored last_error of a novel in error.
func (a *App) failedNovel(w http.ResponseWriter, r *http.Request, id string, cause error) {
	resp := errorResponse{Error: "novel_failed", Message: "novel generation failed"}
	var failed *generation.NovelFailedError
	if errors.As(cause, &failed) {
		resp.LastError = failed.LastError
	}
	if progress, err := a.Progress.Progress(r.Context(), id); err == nil {
		resp.Progress = &progress
		if progress.LastError != "" {
			resp.LastError = progress.LastError
		}
	}
	if resp.LastError == "" {
		resp.LastError = cause.Error()
	}
	a.json(w, http.StatusConflict, resp)
}

// GenerateNovel hands a server-driven novel to the background worker.
func (a *App) GenerateNovel(w http.ResponseWriter, r *http.Request) {
	n, ok := a.loadOwned(w, r)
	if !ok {
		return
	}
	switch {
	case n.Status == checkpoint.StatusError:
		a.failedNovel(w, r, n.ID, &generation.NovelFailedError{NovelID: n.ID, LastError: n.LastError})
		return
	case n.Status == checkpoint.StatusCompleted:
		a.json(w, http.StatusOK, generateResponse{NovelID: n.ID, Status: string(n.Status)})
		return
	case n.DriveMode != domain.DriveServer:
		a.error(w, http.StatusConflict, "client_driven", "novel advances through POST /advance")
		return
	}
	taskID, err := a.Queue.EnqueueDrive(r.Context(), n.ID)
	if err != nil {
		a.Logger.Error().Err(err).Str("novel_id", n.ID).Msg("http: enqueue novel failed")
		a.error(w, http.StatusServiceUnavailable, "queue_unavailable", "could not queue the novel")
		return
	}
	a.json(w, http.StatusAccepted, generateResponse{NovelID: n.ID, TaskID: taskID, Status: "queued"})
}
