package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/sqlinline"
)

type stubExecutor struct {
	tag   pgconn.CommandTag
	err   error
	row   stubRow
	query string
	args  []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.query = query
	s.args = args
	return s.tag, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.query = query
	s.args = args
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

// stubRow fills scan targets from a novelRow.
type stubRow struct {
	data novelRow
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	src := r.data
	targets := src.pgScanTargets()
	if len(dest) != len(targets) {
		return errors.New("unexpected column count")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = *(targets[i].(*string))
		case *[]byte:
			*d = *(targets[i].(*[]byte))
		case *int:
			*d = *(targets[i].(*int))
		case *time.Time:
			*d = *(targets[i].(*time.Time))
		default:
			return errors.New("invalid dest")
		}
	}
	return nil
}

func TestPGUpdateReportsStageConflict(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewNovelRepository(exec)
	n := sampleNovel("n1", domain.DriveServer, time.Now())
	expected := n.Stage
	n.Stage = checkpoint.Outline(checkpoint.StepInitial)

	err := repo.Update(context.Background(), n, expected)
	if !errors.Is(err, domain.ErrStageConflict) {
		t.Fatalf("Update error = %v, want ErrStageConflict", err)
	}
	if exec.query != sqlinline.QUpdateNovelStage {
		t.Fatal("Update did not use the conditional statement")
	}
	if got := exec.args[1]; got != "pending" {
		t.Fatalf("expected stage arg = %v, want pending", got)
	}
	if got := exec.args[2]; got != "outline:initial" {
		t.Fatalf("new stage arg = %v, want outline:initial", got)
	}
}

func TestPGUpdateApplies(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewNovelRepository(exec)
	n := sampleNovel("n1", domain.DriveServer, time.Now())
	if err := repo.Update(context.Background(), n, checkpoint.Stage{}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	var chapters []domain.ChapterRecord
	if err := json.Unmarshal(exec.args[5].([]byte), &chapters); err != nil || chapters == nil {
		t.Fatalf("chapters should encode as an empty array: %s", exec.args[5])
	}
}

func TestPGGetMapsNoRows(t *testing.T) {
	repo := NewNovelRepository(&stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestPGGetDecodesRow(t *testing.T) {
	src := sampleNovel("n1", domain.DriveServer, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	src.Stage = checkpoint.Chapter(2, checkpoint.StepRevisionOne)
	src.Status = checkpoint.StatusInProgress
	src.ChapterCount = 12
	src.CurrentChapter = 2
	src.Chapters = []domain.ChapterRecord{
		{Index: 1, Content: "one", Revision: 3, Stage: checkpoint.ChapterCompleted},
		{Index: 2, Content: "two", Revision: 1, Stage: checkpoint.ChapterRevisionOne},
	}
	row, err := rowFromDomain(src)
	if err != nil {
		t.Fatalf("rowFromDomain returned error: %v", err)
	}

	repo := NewNovelRepository(&stubExecutor{row: stubRow{data: row}})
	got, err := repo.Get(context.Background(), "n1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Stage != src.Stage || got.ChapterCount != 12 || len(got.Chapters) != 2 || got.Chapters[1].Content != "two" {
		t.Fatalf("decoded novel = %+v", got)
	}
}

func TestPGDeleteAndClaim(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("DELETE 0")}
	repo := NewNovelRepository(exec)
	if err := repo.Delete(context.Background(), "n1", "owner-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete error = %v, want ErrNotFound", err)
	}

	exec.row = stubRow{err: pgx.ErrNoRows}
	if _, err := repo.ClaimNext(context.Background(), 90*time.Second); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ClaimNext error = %v, want ErrNotFound", err)
	}
	if got := exec.args[0]; got != float64(90) {
		t.Fatalf("lease arg = %v, want 90 seconds", got)
	}
}

func TestPGRenew(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewNovelRepository(exec)
	if err := repo.Renew(context.Background(), "n1", 2*time.Minute); err != nil {
		t.Fatalf("Renew returned error: %v", err)
	}
	if exec.args[0] != "n1" || exec.args[1] != float64(120) {
		t.Fatalf("args = %v", exec.args)
	}

	exec.tag = pgconn.NewCommandTag("UPDATE 0")
	if err := repo.Renew(context.Background(), "n1", time.Minute); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Renew without lease = %v, want ErrNotFound", err)
	}
}

func TestPGMarkStaleReturnsCount(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("UPDATE 3")}
	repo := NewNovelRepository(exec)
	count, err := repo.MarkStale(context.Background(), time.Now(), "timed out")
	if err != nil || count != 3 {
		t.Fatalf("MarkStale = %d, %v; want 3", count, err)
	}
}
