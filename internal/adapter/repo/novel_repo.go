package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/infra"
	"novelforge/internal/sqlinline"
)

// NovelRepositoryPG implements domain.NovelRepository on PostgreSQL.
type NovelRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewNovelRepository creates a novel repository backed by PostgreSQL.
func NewNovelRepository(sql infra.SQLExecutor) *NovelRepositoryPG {
	return &NovelRepositoryPG{sql: sql}
}

// Create inserts a new novel record.
func (r *NovelRepositoryPG) Create(ctx context.Context, n *domain.Novel) error {
	row, err := rowFromDomain(n)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertNovel,
		row.ID,
		row.OwnerID,
		row.Title,
		row.Parameters,
		row.DriveMode,
		row.Stage,
		row.Status,
		row.Outline,
		row.Chapters,
		row.ChapterCount,
		row.CurrentChapter,
		row.LastError,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return err
}

// Get fetches a novel by its identifier.
func (r *NovelRepositoryPG) Get(ctx context.Context, id string) (*domain.Novel, error) {
	return scanNovel(r.sql.QueryRow(ctx, sqlinline.QSelectNovel, id))
}

// Update persists n if the stored stage still equals expected.
func (r *NovelRepositoryPG) Update(ctx context.Context, n *domain.Novel, expected checkpoint.Stage) error {
	row, err := rowFromDomain(n)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateNovelStage,
		row.ID,
		expected.String(),
		row.Stage,
		row.Status,
		row.Outline,
		row.Chapters,
		row.ChapterCount,
		row.CurrentChapter,
		row.LastError,
		row.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStageConflict
	}
	return nil
}

// MarkFailed moves the novel to the error status if it still sits at expected.
func (r *NovelRepositoryPG) MarkFailed(ctx context.Context, id string, expected checkpoint.Stage, message string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkNovelFailed, id, expected.String(), message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStageConflict
	}
	return nil
}

// Delete removes a novel owned by ownerID.
func (r *NovelRepositoryPG) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteNovel, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NovelRepositoryPG) MarkStale(ctx context.Context, before time.Time, message string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkStaleNovels, before.UTC(), message)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *NovelRepositoryPG) ClaimNext(ctx context.Context, lease time.Duration) (*domain.Novel, error) {
	return scanNovel(r.sql.QueryRow(ctx, sqlinline.QClaimNextNovel, lease.Seconds()))
}

func (r *NovelRepositoryPG) Renew(ctx context.Context, id string, lease time.Duration) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QRenewNovelLease, id, lease.Seconds())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NovelRepositoryPG) Release(ctx context.Context, id string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QReleaseNovel, id)
	return err
}

func scanNovel(row pgx.Row) (*domain.Novel, error) {
	var nr novelRow
	if err := row.Scan(nr.pgScanTargets()...); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return nr.toDomain()
}

var _ domain.NovelRepository = (*NovelRepositoryPG)(nil)
