package generation

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"novelforge/internal/checkpoint"
	"novelforge/internal/config"
	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
	"novelforge/internal/providers/llm"
)

// memRepo is an in-memory NovelRepository with the same conditional-update
// semantics as the SQL implementations.
type memRepo struct {
	mu      sync.Mutex
	novels  map[string]*domain.Novel
	updates int
	// beforeUpdate runs inside Update before the stage check, without the lock.
	beforeUpdate func(id string)
}

func newMemRepo() *memRepo {
	return &memRepo{novels: map[string]*domain.Novel{}}
}

func (r *memRepo) Create(_ context.Context, n *domain.Novel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.novels[n.ID] = n.Clone()
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (*domain.Novel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.novels[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return n.Clone(), nil
}

func (r *memRepo) Update(_ context.Context, n *domain.Novel, expected checkpoint.Stage) error {
	if hook := r.beforeUpdate; hook != nil {
		r.beforeUpdate = nil
		hook(n.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.novels[n.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Stage != expected || cur.Status == checkpoint.StatusError {
		return domain.ErrStageConflict
	}
	r.novels[n.ID] = n.Clone()
	r.updates++
	return nil
}

func (r *memRepo) MarkFailed(_ context.Context, id string, expected checkpoint.Stage, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.novels[id]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Stage != expected || cur.Status.Terminal() {
		return domain.ErrStageConflict
	}
	cur.Status = checkpoint.StatusError
	cur.LastError = message
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.novels[id]
	if !ok || n.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(r.novels, id)
	return nil
}

func (r *memRepo) MarkStale(_ context.Context, before time.Time, message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.novels {
		if n.Status.Terminal() || !n.UpdatedAt.Before(before) {
			continue
		}
		n.Status = checkpoint.StatusError
		n.LastError = message
		count++
	}
	return count, nil
}

func (r *memRepo) ClaimNext(_ context.Context, _ time.Duration) (*domain.Novel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.novels))
	for id, n := range r.novels {
		if n.DriveMode == domain.DriveServer && !n.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Strings(ids)
	return r.novels[ids[0]].Clone(), nil
}

func (r *memRepo) Renew(context.Context, string, time.Duration) error { return nil }

func (r *memRepo) Release(context.Context, string) error { return nil }

func (r *memRepo) stored(id string) *domain.Novel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.novels[id].Clone()
}

// scriptedGenerator answers each call with fn and records every request.
type scriptedGenerator struct {
	mu    sync.Mutex
	calls []llm.Request
	fn    func(req llm.Request, call int) (string, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	call := len(g.calls)
	g.mu.Unlock()
	return g.fn(req, call)
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func testParameters() jsoncfg.NovelParameters {
	p := jsoncfg.NovelParameters{
		Title:        "The Salt Archive",
		PrimaryGenre: "Mystery",
		PrimaryTheme: "Memory",
		Characters: []jsoncfg.Character{
			{Name: "Ines", Role: "protagonist", ArcType: "internal_discovery"},
		},
	}
	p.Normalize("en")
	return p
}

func seedNovel(repo *memRepo, id string, mode domain.DriveMode) *domain.Novel {
	n := domain.NewNovel(id, "owner-1", testParameters(), mode, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	_ = repo.Create(context.Background(), n)
	return n
}

// outlineWith returns an outline long enough to pass the length check that
// declares chapters 1..count.
func outlineWith(count int) string {
	var b strings.Builder
	b.WriteString("Synopsis\n")
	b.WriteString(strings.Repeat("A quiet town hides a loud secret. ", 40))
	b.WriteString("\n\n")
	for i := 1; i <= count; i++ {
		b.WriteString("Chapter ")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": a turning point\n")
	}
	return b.String()
}

func chapterText(n int) string {
	return "Chapter " + strconv.Itoa(n) + "\n\n" + strings.Repeat("The tide came in and nobody moved. ", 40)
}

func newTestPipeline(repo *memRepo, gen llm.Generator) (*Executor, *Orchestrator, *[]time.Duration) {
	profile := config.DefaultProfile()
	logger := zerolog.Nop()
	exec := NewExecutor(repo, gen, profile, logger)
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	exec.now = func() time.Time { return fixed }
	orch := NewOrchestrator(repo, exec, profile.Retry, logger)
	waits := &[]time.Duration{}
	orch.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return exec, orch, waits
}
