package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func setupGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	pool := NewRebuildPool(2, 16, nil)
	pool.Start()
	t.Cleanup(pool.Stop)

	guard, err := NewGuard(client, nil, pool, 10*time.Second)
	require.NoError(t, err)
	return guard, mr
}

func TestPassThroughCachesLoadedValue(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (*cachedThing, error) {
		atomic.AddInt32(&calls, 1)
		return &cachedThing{Name: "mocha", Count: 7}, nil
	}

	first, err := GetWithPassThrough(ctx, guard, "cache:thing:1", time.Minute, time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "mocha", first.Name)

	second, err := GetWithPassThrough(ctx, guard, "cache:thing:1", time.Minute, time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, 7, second.Count)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPassThroughCachesAbsence(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (*cachedThing, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, err := GetWithPassThrough(ctx, guard, "cache:thing:404", time.Minute, time.Minute, loader)
	assert.ErrorIs(t, err, ErrMiss)

	// The null sentinel answers the second lookup without touching the loader.
	_, err = GetWithPassThrough(ctx, guard, "cache:thing:404", time.Minute, time.Minute, loader)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPassThroughNullSentinelExpires(t *testing.T) {
	guard, mr := setupGuard(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (*cachedThing, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, err := GetWithPassThrough(ctx, guard, "cache:thing:404", time.Minute, time.Second, loader)
	assert.ErrorIs(t, err, ErrMiss)

	mr.FastForward(2 * time.Second)

	_, err = GetWithPassThrough(ctx, guard, "cache:thing:404", time.Minute, time.Second, loader)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLogicalExpireUnprimedKeyMisses(t *testing.T) {
	guard, _ := setupGuard(t)

	_, err := GetWithLogicalExpire(context.Background(), guard, "cache:thing:9", time.Minute, func(context.Context) (*cachedThing, error) {
		t.Fatal("loader must not run for an unprimed key")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrMiss)
}

func TestLogicalExpireFreshValueSkipsLoader(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	require.NoError(t, SetWithLogicalExpire(ctx, guard, "cache:thing:1", &cachedThing{Name: "latte"}, time.Minute))

	got, err := GetWithLogicalExpire(ctx, guard, "cache:thing:1", time.Minute, func(context.Context) (*cachedThing, error) {
		t.Fatal("loader must not run while the entry is fresh")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "latte", got.Name)
}

func TestLogicalExpireStaleValueRebuildsInBackground(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	base := time.Now()
	guard.now = func() time.Time { return base }
	require.NoError(t, SetWithLogicalExpire(ctx, guard, "cache:thing:1", &cachedThing{Name: "stale"}, time.Minute))

	guard.now = func() time.Time { return base.Add(2 * time.Minute) }

	var calls int32
	loader := func(context.Context) (*cachedThing, error) {
		atomic.AddInt32(&calls, 1)
		return &cachedThing{Name: "fresh"}, nil
	}

	got, err := GetWithLogicalExpire(ctx, guard, "cache:thing:1", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, "stale", got.Name, "stale read must not block on the loader")

	require.Eventually(t, func() bool {
		got, err := GetWithLogicalExpire(ctx, guard, "cache:thing:1", time.Minute, loader)
		return err == nil && got.Name == "fresh"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLogicalExpireRebuildIsSingleFlight(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	base := time.Now()
	guard.now = func() time.Time { return base }
	require.NoError(t, SetWithLogicalExpire(ctx, guard, "cache:thing:1", &cachedThing{Name: "stale"}, time.Minute))

	guard.now = func() time.Time { return base.Add(2 * time.Minute) }

	var calls int32
	loader := func(context.Context) (*cachedThing, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return &cachedThing{Name: "fresh"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := GetWithLogicalExpire(ctx, guard, "cache:thing:1", time.Minute, loader)
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		got, err := GetWithLogicalExpire(ctx, guard, "cache:thing:1", time.Minute, loader)
		return err == nil && got.Name == "fresh"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
