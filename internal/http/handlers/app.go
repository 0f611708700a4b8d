package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"novelforge/internal/domain"
	"novelforge/internal/generation"
	"novelforge/internal/middleware"
	"novelforge/internal/queue"
)

const (
	defaultEventInterval = time.Second
	defaultLinkExpiry    = 15 * time.Minute
	maxRequestBody       = 1 << 20
)

// Stepper runs one orchestrator step.
type Stepper interface {
	Step(ctx context.Context, novelID string) (generation.StepResult, error)
}

// ProgressReader serves progress snapshots.
type ProgressReader interface {
	Progress(ctx context.Context, novelID string) (domain.Progress, error)
}

// ManuscriptLinker returns a time-limited download link for an exported
// manuscript.
type ManuscriptLinker interface {
	DownloadURL(ctx context.Context, novel *domain.Novel, expiry time.Duration) (string, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries the dependencies shared by every handler. Links and Store are
// optional.
type App struct {
	Service  *generation.Service
	Steps    Stepper
	Progress ProgressReader
	Queue    queue.Enqueuer
	Links    ManuscriptLinker
	Store    Pinger
	Logger   zerolog.Logger

	EventInterval time.Duration
	LinkExpiry    time.Duration

	upgrader websocket.Upgrader
}

func NewApp(app App) *App {
	a := app
	if a.EventInterval <= 0 {
		a.EventInterval = defaultEventInterval
	}
	if a.LinkExpiry <= 0 {
		a.LinkExpiry = defaultLinkExpiry
	}
	if a.Queue == nil {
		a.Queue = queue.PollEnqueuer{}
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		// The access_token query parameter authenticates the stream, not the origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return &a
}

// Mount registers the owner-scoped novel routes. Callers must install the
// auth middleware first.
func (a *App) Mount(r chi.Router) {
	r.Route("/novels", func(r chi.Router) {
		r.Post("/", a.CreateNovel)
		r.Route("/{novel_id}", func(r chi.Router) {
			r.Get("/", a.GetNovel)
			r.Delete("/", a.DeleteNovel)
			r.Get("/progress", a.NovelProgress)
			r.Post("/advance", a.AdvanceNovel)
			r.Post("/generate", a.GenerateNovel)
			r.Get("/manuscript", a.Manuscript)
			r.Get("/manuscript/link", a.ManuscriptLink)
			r.Get("/events", a.NovelEvents)
		})
	})
}

type errorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	Field     string           `json:"field,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Progress  *domain.Progress `json:"progress,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

// fail maps service errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	var failed *generation.NovelFailedError
	switch {
	case errors.As(err, &validation):
		a.json(w, http.StatusBadRequest, errorResponse{Error: "validation_error", Message: validation.Message, Field: validation.Field})
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "novel not found")
	case errors.Is(err, domain.ErrNotCompleted):
		a.error(w, http.StatusConflict, "not_completed", "novel is still being generated")
	case errors.As(err, &failed):
		a.json(w, http.StatusConflict, errorResponse{Error: "novel_failed", Message: "novel generation failed", LastError: failed.LastError})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}

// loadOwned resolves the {novel_id} route parameter to a novel the caller
// owns, writing the error response itself when that fails.
func (a *App) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Novel, bool) {
	owner := a.currentOwnerID(r)
	if owner == "" {
		a.fail(w, r, domain.ErrUnauthorized)
		return nil, false
	}
	n, err := a.Service.Get(r.Context(), chiParam(r), owner)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return n, true
}

func chiParam(r *http.Request) string {
	return chi.URLParam(r, "novel_id")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	return dec.Decode(dst)
}
