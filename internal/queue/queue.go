// Package queue moves server-driven novels from the API to the worker,
// either through Redis-backed asynq tasks or by polling the novel store.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	TypeDriveNovel = "novel:drive"

	defaultQueue  = "default"
	taskRetention = 24 * time.Hour
	uniqueWindow  = 10 * time.Minute

	// DefaultSlice bounds how long one task drives a novel before handing
	// the rest to a continuation task. taskTimeout leaves room for the stage
	// that is running when the slice ends.
	DefaultSlice = time.Hour
	taskTimeout  = DefaultSlice + time.Hour
)

// DrivePayload is the body of a TypeDriveNovel task. Slice counts the
// continuation tasks before this one.
type DrivePayload struct {
	NovelID string `json:"novel_id"`
	Slice   int    `json:"slice,omitempty"`
}

// RedisOptions locates the Redis instance backing the queue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func (o RedisOptions) clientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// Enqueuer hands a novel to the background worker.
type Enqueuer interface {
	EnqueueDrive(ctx context.Context, novelID string) (string, error)
}

// Client enqueues drive tasks on asynq.
type Client struct {
	client *asynq.Client
	logger zerolog.Logger
}

func NewClient(opts RedisOptions, logger zerolog.Logger) *Client {
	return &Client{client: asynq.NewClient(opts.clientOpt()), logger: logger}
}

func (c *Client) Close() error { return c.client.Close() }

// NewDriveTask builds the first task for novelID. The orchestrator retries
// stages itself, so asynq never retries the task.
func NewDriveTask(novelID string) (*asynq.Task, error) {
	return newSliceTask(DrivePayload{NovelID: novelID})
}

// newSliceTask builds a drive task. Continuations carry a different slice
// number so they never collide with the unique lock of the running task.
func newSliceTask(payload DrivePayload) (*asynq.Task, error) {
	if payload.NovelID == "" {
		return nil, errors.New("queue: novel id is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload failed: %w", err)
	}
	return asynq.NewTask(TypeDriveNovel, body,
		asynq.MaxRetry(0),
		asynq.Timeout(taskTimeout),
		asynq.Retention(taskRetention),
		asynq.Unique(uniqueWindow),
		asynq.Queue(defaultQueue),
	), nil
}

// EnqueueDrive queues novelID. A novel that is already queued is not queued
// twice; the call then succeeds with an empty task id.
func (c *Client) EnqueueDrive(ctx context.Context, novelID string) (string, error) {
	task, err := NewDriveTask(novelID)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			c.logger.Info().Str("novel_id", novelID).Msg("queue: novel already queued")
			return "", nil
		}
		return "", fmt.Errorf("enqueue failed: %w", err)
	}
	c.logger.Info().Str("novel_id", novelID).Str("task_id", info.ID).Msg("queue: novel enqueued")
	return info.ID, nil
}

// EnqueueContinuation queues the next slice of a novel whose previous task
// ran out of time.
func (c *Client) EnqueueContinuation(ctx context.Context, novelID string, slice int) (string, error) {
	task, err := newSliceTask(DrivePayload{NovelID: novelID, Slice: slice})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue continuation failed: %w", err)
	}
	c.logger.Info().Str("novel_id", novelID).Int("slice", slice).Str("task_id", info.ID).Msg("queue: novel continuation enqueued")
	return info.ID, nil
}

// PollEnqueuer is used when the worker claims novels straight from the
// store. Server-driven novels are claimable from the moment they are
// created, so there is nothing to send.
type PollEnqueuer struct{}

func (PollEnqueuer) EnqueueDrive(context.Context, string) (string, error) { return "", nil }

var (
	_ Enqueuer = (*Client)(nil)
	_ Enqueuer = PollEnqueuer{}
)
