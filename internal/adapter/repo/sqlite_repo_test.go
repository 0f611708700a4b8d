package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
)

func openTestSQLite(t *testing.T) *NovelRepositorySQLite {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "novels.db"))
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleNovel(id string, mode domain.DriveMode, at time.Time) *domain.Novel {
	params := jsoncfg.NovelParameters{Title: "Harbor Lights", PrimaryGenre: "Drama", PrimaryTheme: "Home"}
	params.Normalize("en")
	return domain.NewNovel(id, "owner-1", params, mode, at)
}

func TestSQLiteCreateGetRoundTrip(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	n := sampleNovel("n1", domain.DriveClient, created)

	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	got, err := repo.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Title != "Harbor Lights" || got.DriveMode != domain.DriveClient || got.Status != checkpoint.StatusInitializing {
		t.Fatalf("novel = %+v", got)
	}
	if !got.Stage.IsZero() || !got.CreatedAt.Equal(created) || got.Parameters.Characters[0].Name != "Protagonist" {
		t.Fatalf("round trip lost data: stage %s created %s", got.Stage, got.CreatedAt)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get missing error = %v", err)
	}
}

func TestSQLiteUpdateIsConditionalOnStage(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	n := sampleNovel("n1", domain.DriveServer, time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC))
	if err := repo.Create(ctx, n); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	next := n.Clone()
	next.Stage = checkpoint.Outline(checkpoint.StepInitial)
	next.Status = checkpoint.StatusOutlineInProgress
	next.Outline = domain.Outline{Status: checkpoint.OutlineInitial, Current: "outline", Iterations: []domain.OutlineIteration{{Content: "outline"}}}
	if err := repo.Update(ctx, next, checkpoint.Stage{}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := repo.Update(ctx, next, checkpoint.Stage{}); !errors.Is(err, domain.ErrStageConflict) {
		t.Fatalf("stale Update error = %v, want ErrStageConflict", err)
	}
	got, _ := repo.Get(ctx, "n1")
	if got.Stage != next.Stage || got.Outline.Current != "outline" || len(got.Outline.Iterations) != 1 {
		t.Fatalf("stored = %s %+v", got.Stage, got.Outline)
	}
}

func TestSQLiteChapterCountIsImmutable(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	n := sampleNovel("n1", domain.DriveServer, time.Now())
	n.Stage = checkpoint.Outline(checkpoint.StepRevisionTwo)
	n.Status = checkpoint.StatusOutlineInProgress
	_ = repo.Create(ctx, n)

	next := n.Clone()
	next.Stage = checkpoint.Outline(checkpoint.StepCompleted)
	next.Status = checkpoint.StatusOutlineCompleted
	next.ChapterCount = 12
	if err := repo.Update(ctx, next, n.Stage); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	again := next.Clone()
	again.Stage = checkpoint.Chapter(1, checkpoint.StepInitial)
	again.Status = checkpoint.StatusInProgress
	again.ChapterCount = 99
	again.Chapters = []domain.ChapterRecord{{Index: 1, Content: "text", Stage: checkpoint.ChapterInitial}}
	if err := repo.Update(ctx, again, next.Stage); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	got, _ := repo.Get(ctx, "n1")
	if got.ChapterCount != 12 || len(got.Chapters) != 1 {
		t.Fatalf("chapter_count = %d chapters %d, want 12 and 1", got.ChapterCount, len(got.Chapters))
	}
}

func TestSQLiteMarkFailedAndStale(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		n := sampleNovel(id, domain.DriveServer, old)
		n.Status = checkpoint.StatusInProgress
		_ = repo.Create(ctx, n)
	}

	if err := repo.MarkFailed(ctx, "a", checkpoint.Outline(checkpoint.StepInitial), "boom"); !errors.Is(err, domain.ErrStageConflict) {
		t.Fatalf("MarkFailed with wrong stage error = %v", err)
	}
	if err := repo.MarkFailed(ctx, "a", checkpoint.Stage{}, "boom"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	got, _ := repo.Get(ctx, "a")
	if got.Status != checkpoint.StatusError || got.LastError != "boom" {
		t.Fatalf("a = %q / %q", got.Status, got.LastError)
	}

	count, err := repo.MarkStale(ctx, old.Add(time.Hour), "timed out")
	if err != nil || count != 1 {
		t.Fatalf("MarkStale = %d, %v; want 1", count, err)
	}
	got, _ = repo.Get(ctx, "b")
	if got.Status != checkpoint.StatusError || got.LastError != "timed out" {
		t.Fatalf("b = %q / %q", got.Status, got.LastError)
	}
}

func TestSQLiteClaimNextHonorsLeaseAndDriveMode(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_ = repo.Create(ctx, sampleNovel("client", domain.DriveClient, now.Add(-time.Hour)))
	_ = repo.Create(ctx, sampleNovel("server", domain.DriveServer, now))

	claimed, err := repo.ClaimNext(ctx, time.Minute)
	if err != nil || claimed.ID != "server" {
		t.Fatalf("ClaimNext = %v, %v; want server", claimed, err)
	}
	if _, err := repo.ClaimNext(ctx, time.Minute); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("leased novel claimed twice: %v", err)
	}
	if err := repo.Release(ctx, "server"); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if claimed, err := repo.ClaimNext(ctx, time.Minute); err != nil || claimed.ID != "server" {
		t.Fatalf("ClaimNext after release = %v, %v", claimed, err)
	}

	now = now.Add(2 * time.Minute)
	if claimed, err := repo.ClaimNext(ctx, time.Minute); err != nil || claimed.ID != "server" {
		t.Fatalf("expired lease should be claimable: %v, %v", claimed, err)
	}
}

func TestSQLiteRenewKeepsNovelClaimedDuringLongDrive(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	_ = repo.Create(ctx, sampleNovel("n1", domain.DriveServer, now))

	if err := repo.Renew(ctx, "n1", time.Minute); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Renew without a lease = %v, want ErrNotFound", err)
	}
	if _, err := repo.ClaimNext(ctx, time.Minute); err != nil {
		t.Fatalf("ClaimNext returned error: %v", err)
	}

	// The drive outlives the original lease, renewing as it goes.
	for i := 0; i < 5; i++ {
		now = now.Add(40 * time.Second)
		if err := repo.Renew(ctx, "n1", time.Minute); err != nil {
			t.Fatalf("Renew #%d returned error: %v", i, err)
		}
		if _, err := repo.ClaimNext(ctx, time.Minute); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("second worker claimed a novel still being driven (round %d): %v", i, err)
		}
	}

	now = now.Add(2 * time.Minute)
	if claimed, err := repo.ClaimNext(ctx, time.Minute); err != nil || claimed.ID != "n1" {
		t.Fatalf("abandoned lease should expire: %v, %v", claimed, err)
	}
}

func TestSQLiteDeleteIsOwnerScoped(t *testing.T) {
	repo := openTestSQLite(t)
	ctx := context.Background()
	_ = repo.Create(ctx, sampleNovel("n1", domain.DriveServer, time.Now()))

	if err := repo.Delete(ctx, "n1", "intruder"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign Delete error = %v", err)
	}
	if err := repo.Delete(ctx, "n1", "owner-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := repo.Get(ctx, "n1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("novel still present after delete")
	}
}
