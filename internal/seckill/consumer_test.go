package seckill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

type stubPersister struct {
	mu        sync.Mutex
	persisted []Reservation
	err       error
}

func (s *stubPersister) Persist(ctx context.Context, res Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.persisted = append(s.persisted, res)
	return nil
}

func (s *stubPersister) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.persisted)
}

type consumerFixture struct {
	queue     *Queue
	consumer  *Consumer
	client    *redis.Client
	mr        *miniredis.Miniredis
	persister *stubPersister
}

func setupConsumer(t *testing.T) *consumerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	queue, err := NewQueue(client, testStream, "order-consumers", "consumer-1", 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, queue.EnsureGroup(context.Background()))

	persister := &stubPersister{}
	consumer, err := NewConsumer(queue, client, persister, nil, nil, ConsumerOptions{
		OrderLockTTL:  time.Second,
		LockRetries:   2,
		LockRetryWait: time.Millisecond,
		SweepBackoff:  time.Millisecond,
	})
	require.NoError(t, err)

	return &consumerFixture{queue: queue, consumer: consumer, client: client, mr: mr, persister: persister}
}

func (f *consumerFixture) addReservation(t *testing.T, res Reservation) {
	t.Helper()
	_, err := f.client.StreamAdd(context.Background(), testStream, map[string]any{
		"order_id":   res.OrderID,
		"voucher_id": res.VoucherID,
		"user_id":    res.UserID,
	})
	require.NoError(t, err)
}

func TestQueueDeliversAndAcknowledges(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})

	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	res, err := ParseReservation(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.OrderID)
	assert.Equal(t, int64(7), res.VoucherID)
	assert.Equal(t, int64(1001), res.UserID)
	assert.False(t, res.CreatedAt.IsZero())

	require.NoError(t, f.queue.Ack(ctx, msgs[0].ID))

	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestQueueKeepsUnackedEntriesPending(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})

	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// No ack: a crash here must leave the entry recoverable.
	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgs[0].ID, pending[0].ID)
}

func TestHandlePersistsAndAcks(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, f.consumer.handle(ctx, msgs[0]))

	assert.Equal(t, 1, f.persister.count())
	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The per-user lock must not outlive the handling.
	assert.False(t, f.mr.Exists("lock:order:1001"))
}

func TestHandleDiscardsMalformedEntries(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	_, err := f.client.StreamAdd(ctx, testStream, map[string]any{"junk": "1"})
	require.NoError(t, err)

	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, f.consumer.handle(ctx, msgs[0]))

	assert.Zero(t, f.persister.count())
	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleLeavesFailedPersistPending(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	f.persister.err = errors.New("db unavailable")
	assert.Error(t, f.consumer.handle(ctx, msgs[0]))

	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRecoverPendingRetriesUntilClean(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	f.addReservation(t, Reservation{OrderID: 56, VoucherID: 7, UserID: 1002})

	// Deliver both without acking, simulating a crash mid-batch.
	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	f.consumer.recoverPending(ctx)

	assert.Equal(t, 2, f.persister.count())
	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunRecoversClaimedEntriesAfterRestart(t *testing.T) {
	f := setupConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})

	// Deliver without acking, as if the consumer crashed mid-handling, then
	// start a fresh loop with no new traffic. The entry must come back
	// through the pending sweep, not wait on another delivery.
	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	done := make(chan error, 1)
	go func() { done <- f.consumer.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.persister.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	pending, err := f.queue.ReadPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	cancel()
	require.NoError(t, <-done)
}

func TestHandleSkipsWhenUserLockHeld(t *testing.T) {
	f := setupConsumer(t)
	ctx := context.Background()

	f.addReservation(t, Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	msgs, err := f.queue.ReadNew(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	f.mr.Set("lock:order:1001", "held-elsewhere")

	assert.Error(t, f.consumer.handle(ctx, msgs[0]))
	assert.Zero(t, f.persister.count())

	pending, err := f.queue.ReadPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
