package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// ErrAlreadyQueued is returned when the sale's redemptions were already enqueued.
var ErrAlreadyQueued = errors.New("jobs: redemption already queued")

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue.
type Client struct {
	client taskEnqueuer
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueRedemption enqueues the redemption task for a sale. Enqueuing the same sale
// twice while the first task is pending or retained yields ErrAlreadyQueued.
func (c *Client) EnqueueRedemption(ctx context.Context, payload RedeemPayload) error {
	task, err := NewRedeemTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return ErrAlreadyQueued
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
