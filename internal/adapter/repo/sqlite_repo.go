package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS novels (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  parameters TEXT NOT NULL,
  drive_mode TEXT NOT NULL DEFAULT 'server',
  stage TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL,
  outline TEXT NOT NULL DEFAULT '{}',
  chapters TEXT NOT NULL DEFAULT '[]',
  chapter_count INTEGER NOT NULL DEFAULT 0,
  current_chapter_index INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  lease_until INTEGER,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS novels_active_idx ON novels (status, updated_at);
`

const sqliteNovelColumns = `id, owner_id, title, parameters, drive_mode, stage, status,
  outline, chapters, chapter_count, current_chapter_index, COALESCE(last_error, ''),
  created_at, updated_at`

// NovelRepositorySQLite implements domain.NovelRepository on an embedded
// SQLite file. It suits single-node deployments and local development.
type NovelRepositorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*NovelRepositorySQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &NovelRepositorySQLite{db: db, now: time.Now}, nil
}

func (r *NovelRepositorySQLite) Close() error { return r.db.Close() }

func (r *NovelRepositorySQLite) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *NovelRepositorySQLite) Create(ctx context.Context, n *domain.Novel) error {
	row, err := rowFromDomain(n)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO novels (id, owner_id, title, parameters, drive_mode, stage, status,
           outline, chapters, chapter_count, current_chapter_index, last_error, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		row.ID, row.OwnerID, row.Title, string(row.Parameters), row.DriveMode, row.Stage, row.Status,
		string(row.Outline), string(row.Chapters), row.ChapterCount, row.CurrentChapter, row.LastError,
		row.CreatedAt.UnixMilli(), row.UpdatedAt.UnixMilli(),
	)
	return err
}

func (r *NovelRepositorySQLite) Get(ctx context.Context, id string) (*domain.Novel, error) {
	return scanSQLiteNovel(r.db.QueryRowContext(ctx, `SELECT `+sqliteNovelColumns+` FROM novels WHERE id = ?`, id))
}

func (r *NovelRepositorySQLite) Update(ctx context.Context, n *domain.Novel, expected checkpoint.Stage) error {
	row, err := rowFromDomain(n)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE novels
         SET stage = ?,
             status = ?,
             outline = ?,
             chapters = ?,
             chapter_count = CASE WHEN chapter_count = 0 THEN ? ELSE chapter_count END,
             current_chapter_index = ?,
             last_error = NULLIF(?, ''),
             updated_at = ?
         WHERE id = ? AND stage = ? AND status <> 'error'`,
		row.Stage, row.Status, string(row.Outline), string(row.Chapters), row.ChapterCount,
		row.CurrentChapter, row.LastError, row.UpdatedAt.UnixMilli(),
		row.ID, expected.String(),
	)
	return requireAffected(res, err, domain.ErrStageConflict)
}

func (r *NovelRepositorySQLite) MarkFailed(ctx context.Context, id string, expected checkpoint.Stage, message string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE novels
         SET status = 'error', last_error = ?, lease_until = NULL, updated_at = ?
         WHERE id = ? AND stage = ? AND status NOT IN ('completed', 'error')`,
		message, r.now().UnixMilli(), id, expected.String(),
	)
	return requireAffected(res, err, domain.ErrStageConflict)
}

func (r *NovelRepositorySQLite) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM novels WHERE id = ? AND owner_id = ?`, id, ownerID)
	return requireAffected(res, err, domain.ErrNotFound)
}

func (r *NovelRepositorySQLite) MarkStale(ctx context.Context, before time.Time, message string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE novels
         SET status = 'error', last_error = ?, lease_until = NULL, updated_at = ?
         WHERE status NOT IN ('completed', 'error') AND updated_at < ?`,
		message, r.now().UnixMilli(), before.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *NovelRepositorySQLite) ClaimNext(ctx context.Context, lease time.Duration) (*domain.Novel, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := r.now()
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM novels
         WHERE drive_mode = 'server'
           AND status NOT IN ('completed', 'error')
           AND (lease_until IS NULL OR lease_until < ?)
         ORDER BY updated_at ASC
         LIMIT 1`, now.UnixMilli(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE novels SET lease_until = ? WHERE id = ?`, now.Add(lease).UnixMilli(), id); err != nil {
		return nil, err
	}
	n, err := scanSQLiteNovel(tx.QueryRowContext(ctx, `SELECT `+sqliteNovelColumns+` FROM novels WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return n, tx.Commit()
}

func (r *NovelRepositorySQLite) Renew(ctx context.Context, id string, lease time.Duration) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE novels SET lease_until = ? WHERE id = ? AND lease_until IS NOT NULL`,
		r.now().Add(lease).UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *NovelRepositorySQLite) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE novels SET lease_until = NULL WHERE id = ?`, id)
	return err
}

func scanSQLiteNovel(row *sql.Row) (*domain.Novel, error) {
	var (
		nr                        novelRow
		params, outline, chapters string
		createdMs, updatedMs      int64
	)
	err := row.Scan(&nr.ID, &nr.OwnerID, &nr.Title, &params, &nr.DriveMode, &nr.Stage, &nr.Status,
		&outline, &chapters, &nr.ChapterCount, &nr.CurrentChapter, &nr.LastError, &createdMs, &updatedMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	nr.Parameters = []byte(params)
	nr.Outline = []byte(outline)
	nr.Chapters = []byte(chapters)
	nr.CreatedAt = time.UnixMilli(createdMs)
	nr.UpdatedAt = time.UnixMilli(updatedMs)
	return nr.toDomain()
}

func requireAffected(res sql.Result, err error, none error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return none
	}
	return nil
}

var _ domain.NovelRepository = (*NovelRepositorySQLite)(nil)
