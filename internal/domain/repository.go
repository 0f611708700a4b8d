package domain

import (
	"context"
	"time"

	"novelforge/internal/checkpoint"
)

// NovelRepository persists novels. Update and MarkFailed are conditional on
// the stage the caller read: if another writer moved the novel first they
// return ErrStageConflict and change nothing.
type NovelRepository interface {
	Create(ctx context.Context, novel *Novel) error
	Get(ctx context.Context, id string) (*Novel, error)
	Update(ctx context.Context, novel *Novel, expected checkpoint.Stage) error
	MarkFailed(ctx context.Context, id string, expected checkpoint.Stage, message string) error
	Delete(ctx context.Context, id, ownerID string) error
	// MarkStale fails every non-terminal novel untouched since before.
	MarkStale(ctx context.Context, before time.Time, message string) (int64, error)
	// ClaimNext leases the oldest server-driven, non-terminal novel whose
	// lease has expired. It returns ErrNotFound when nothing is claimable.
	ClaimNext(ctx context.Context, lease time.Duration) (*Novel, error)
	// Renew extends a held lease to now+lease. It returns ErrNotFound when
	// the novel holds no lease.
	Renew(ctx context.Context, id string, lease time.Duration) error
	// Release drops the lease taken by ClaimNext.
	Release(ctx context.Context, id string) error
}
