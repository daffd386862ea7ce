package seckill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acampos-dev/dealrush-backend/internal/lock"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/metrics"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// Persister writes an admitted reservation to durable storage. It must be
// idempotent: the stream delivers at least once, so the same reservation may
// arrive again after a crash.
type Persister interface {
	Persist(ctx context.Context, res Reservation) error
}

// ConsumerOptions tunes the order consumer loop.
type ConsumerOptions struct {
	OrderLockTTL  time.Duration
	LockRetries   int
	LockRetryWait time.Duration
	SweepBackoff  time.Duration
}

// Consumer drains the order stream and hands reservations to the persister.
// Run one per process; horizontal scale comes from more consumers in the
// same group, each with its own consumer name.
type Consumer struct {
	queue     *Queue
	client    *redis.Client
	persister Persister
	logg      *logger.Logger
	metrics   *metrics.SeckillMetrics
	opts      ConsumerOptions
}

// NewConsumer wires a consumer over an existing queue.
func NewConsumer(queue *Queue, client *redis.Client, persister Persister, logg *logger.Logger, m *metrics.SeckillMetrics, opts ConsumerOptions) (*Consumer, error) {
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if persister == nil {
		return nil, errors.New("persister is required")
	}
	if opts.OrderLockTTL <= 0 {
		opts.OrderLockTTL = 10 * time.Second
	}
	if opts.LockRetries <= 0 {
		opts.LockRetries = 1
	}
	if opts.SweepBackoff <= 0 {
		opts.SweepBackoff = 20 * time.Millisecond
	}
	return &Consumer{queue: queue, client: client, persister: persister, logg: logg, metrics: m, opts: opts}, nil
}

// Run loops until ctx is cancelled. Any read or handling failure triggers a
// pending sweep before the loop resumes reading new entries, so
// unacknowledged reservations are retried promptly rather than waiting on the
// next crash recovery. One sweep also runs at startup: entries this consumer
// claimed before a crash sit in the pending list and would otherwise never be
// redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensuring consumer group: %w", err)
	}
	if c.logg != nil {
		c.logg.Info(ctx, "order consumer started")
	}
	c.recoverPending(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msgs, err := c.queue.ReadNew(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if c.logg != nil {
				c.logg.Error(ctx, "reading order stream failed", err)
			}
			c.recoverPending(ctx)
			c.sleep(ctx, c.opts.SweepBackoff)
			continue
		}

		failed := false
		for _, msg := range msgs {
			if err := c.handle(ctx, msg); err != nil {
				failed = true
				if c.logg != nil {
					c.logg.Error(ctx, "handling order reservation failed", err)
				}
			}
		}
		if failed {
			c.recoverPending(ctx)
		}
	}
}

// handle persists one stream entry and acknowledges it. A nil error always
// means the entry was acknowledged.
func (c *Consumer) handle(ctx context.Context, msg goredis.XMessage) error {
	res, err := ParseReservation(msg)
	if err != nil {
		// Malformed entries can never succeed. Ack and move on so they do
		// not wedge the pending list forever.
		if c.logg != nil {
			c.logg.Warn(ctx, fmt.Sprintf("discarding malformed stream entry %s: %v", msg.ID, err))
		}
		return c.queue.Ack(ctx, msg.ID)
	}

	lctx := ctx
	if c.logg != nil {
		lctx = c.logg.WithFields(ctx, map[string]any{
			"order_id":   res.OrderID,
			"voucher_id": res.VoucherID,
			"user_id":    res.UserID,
		})
	}

	// Serialize persistence per user. Redis admission already guarantees one
	// reservation per user and voucher, so this lock is a safety net for the
	// database-side checks when multiple consumers redeliver the same user.
	mu, err := lock.NewMutex(c.client, "order:"+strconv.FormatInt(res.UserID, 10), c.opts.OrderLockTTL)
	if err != nil {
		return err
	}
	if err := mu.Acquire(lctx, c.opts.LockRetries, c.opts.LockRetryWait); err != nil {
		// Left unacknowledged: the pending sweep picks it up once the
		// conflicting holder finishes.
		return fmt.Errorf("order lock for user %d: %w", res.UserID, err)
	}
	defer func() {
		if rErr := mu.Release(lctx); rErr != nil && c.logg != nil {
			c.logg.Error(lctx, "releasing order lock failed", rErr)
		}
	}()

	if err := c.persister.Persist(lctx, res); err != nil {
		return fmt.Errorf("persisting order %d: %w", res.OrderID, err)
	}
	if err := c.queue.Ack(lctx, msg.ID); err != nil {
		return fmt.Errorf("acking stream entry %s: %w", msg.ID, err)
	}
	if c.logg != nil {
		c.logg.Info(lctx, "order persisted")
	}
	return nil
}

// recoverPending drains this consumer's unacknowledged backlog. It keeps
// sweeping until a pass comes back clean or the context is cancelled.
func (c *Consumer) recoverPending(ctx context.Context) {
	if c.metrics != nil {
		c.metrics.IncRecoverySweep()
	}
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := c.queue.ReadPending(ctx)
		if err != nil {
			if c.logg != nil {
				c.logg.Error(ctx, "reading pending order entries failed", err)
			}
			return
		}
		if len(msgs) == 0 {
			return
		}
		for _, msg := range msgs {
			if err := c.handle(ctx, msg); err != nil {
				if c.logg != nil {
					c.logg.Error(ctx, "retrying pending reservation failed", err)
				}
				c.sleep(ctx, c.opts.SweepBackoff)
			}
		}
	}
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
