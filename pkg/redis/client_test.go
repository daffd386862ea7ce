package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
}

func TestKeyBuilders(t *testing.T) {
	c := setupClient(t)

	assert.Equal(t, "seckill:stock:7", c.StockKey(7))
	assert.Equal(t, "seckill:order:7", c.DedupKey(7))
	assert.Equal(t, "lock:order:1001", c.LockKey("order:1001"))
	assert.Equal(t, "id:order:2025:06:01", c.CounterKey("order", "2025:06:01"))
	assert.Equal(t, "cache:shop:3", c.CacheKey("shop", 3))
}

func TestStreamEnsureGroupIsIdempotent(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	require.NoError(t, c.StreamEnsureGroup(ctx, "stream:orders", "g"))
	assert.NoError(t, c.StreamEnsureGroup(ctx, "stream:orders", "g"))
}

func TestStreamRoundTrip(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	require.NoError(t, c.StreamEnsureGroup(ctx, "stream:orders", "g"))

	id, err := c.StreamAdd(ctx, "stream:orders", map[string]any{"order_id": "55"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := c.StreamReadGroup(ctx, "g", "c1", "stream:orders", ">", 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "55", msgs[0].Values["order_id"])

	require.NoError(t, c.StreamAck(ctx, "stream:orders", "g", msgs[0].ID))

	pending, err := c.StreamReadGroup(ctx, "g", "c1", "stream:orders", "0", 10, -1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	c := setupClient(t)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, goredis.Nil)
}
