package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acampos-dev/dealrush-backend/internal/lock"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// ErrMiss means the entity is confirmed absent: either the loader found
// nothing (and the absence was cached) or a logical-expiry key was never
// primed.
var ErrMiss = errors.New("cache: entity absent")

// nullValue marks a confirmed-absent row. Repeated lookups of nonexistent ids
// hit this sentinel instead of the database until the short TTL lapses.
const nullValue = ""

const rebuildTimeout = 5 * time.Second

// Guard wraps cache reads that defend the backing database against
// penetration, hot-key breakdown and avalanche failure modes.
type Guard struct {
	client  *redis.Client
	logg    *logger.Logger
	pool    *RebuildPool
	lockTTL time.Duration
	now     func() time.Time
}

// NewGuard builds a guard; pool carries background rebuilds for the
// logical-expiry read path.
func NewGuard(client *redis.Client, logg *logger.Logger, pool *RebuildPool, lockTTL time.Duration) (*Guard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if pool == nil {
		return nil, errors.New("rebuild pool is required")
	}
	if lockTTL <= 0 {
		return nil, errors.New("rebuild lock ttl must be positive")
	}
	return &Guard{client: client, logg: logg, pool: pool, lockTTL: lockTTL, now: time.Now}, nil
}

// GetWithPassThrough reads key from the cache and falls back to loader on a
// miss. A loader returning nil caches a short-lived empty sentinel so that
// repeated lookups of absent ids stop reaching the source of truth.
func GetWithPassThrough[T any](ctx context.Context, g *Guard, key string, ttl, nullTTL time.Duration, loader func(context.Context) (*T, error)) (*T, error) {
	raw, err := g.client.Get(ctx, key)
	switch {
	case err == nil:
		if raw == nullValue {
			return nil, ErrMiss
		}
		var out T
		if uErr := json.Unmarshal([]byte(raw), &out); uErr == nil {
			return &out, nil
		}
		// Corrupt payload: fall through and rebuild from the loader.
	case !errors.Is(err, goredis.Nil):
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	val, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if val == nil {
		if sErr := g.client.Set(ctx, key, nullValue, nullTTL); sErr != nil && g.logg != nil {
			g.logg.Error(ctx, "caching null sentinel failed", sErr)
		}
		return nil, ErrMiss
	}

	payload, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("marshal cache value: %w", err)
	}
	if sErr := g.client.Set(ctx, key, payload, ttl); sErr != nil && g.logg != nil {
		g.logg.Error(ctx, "caching value failed", sErr)
	}
	return val, nil
}

// envelope carries a logically-expiring payload. The key itself never gets a
// physical TTL.
type envelope struct {
	ExpireAt time.Time       `json:"expire_at"`
	Data     json.RawMessage `json:"data"`
}

// SetWithLogicalExpire primes key with val and an embedded expiry timestamp.
func SetWithLogicalExpire[T any](ctx context.Context, g *Guard, key string, val *T, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	payload, err := json.Marshal(envelope{ExpireAt: g.now().Add(ttl), Data: data})
	if err != nil {
		return fmt.Errorf("marshal cache envelope: %w", err)
	}
	return g.client.Set(ctx, key, payload, 0)
}

// GetWithLogicalExpire reads a primed hot key. Stale entries are returned
// immediately; the per-key lock winner schedules a single background rebuild
// while every other caller keeps the stale value. The read path never blocks
// on the loader. Keys that were never primed yield ErrMiss.
func GetWithLogicalExpire[T any](ctx context.Context, g *Guard, key string, ttl time.Duration, loader func(context.Context) (*T, error)) (*T, error) {
	raw, err := g.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode cache envelope %s: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode cache payload %s: %w", key, err)
	}

	if env.ExpireAt.After(g.now()) {
		return &out, nil
	}

	// Stale: at most one caller per key wins the rebuild lock and hands the
	// reload to the worker pool. Everyone else keeps the stale value.
	mu, mErr := lock.NewMutex(g.client, "cache:"+key, g.lockTTL)
	if mErr != nil {
		return &out, nil
	}
	won, aErr := mu.TryAcquire(ctx)
	if aErr != nil {
		if g.logg != nil {
			g.logg.Error(ctx, "cache rebuild lock attempt failed", aErr)
		}
		return &out, nil
	}
	if won {
		if !g.pool.Submit(rebuildJob(g, key, ttl, loader, mu)) {
			_ = mu.Release(ctx)
		}
	}

	return &out, nil
}

// rebuildJob reloads the entity and rewrites the logical-expiry entry. The
// lock is released in a deferred step even when the loader fails.
func rebuildJob[T any](g *Guard, key string, ttl time.Duration, loader func(context.Context) (*T, error), mu *lock.Mutex) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		defer cancel()
		defer func() {
			if err := mu.Release(ctx); err != nil && g.logg != nil {
				g.logg.Error(ctx, "cache rebuild lock release failed", err)
			}
		}()

		// Double check: the key may have been refreshed between the staleness
		// check and this job running.
		if raw, err := g.client.Get(ctx, key); err == nil {
			var env envelope
			if uErr := json.Unmarshal([]byte(raw), &env); uErr == nil && env.ExpireAt.After(g.now()) {
				return
			}
		}

		val, err := loader(ctx)
		if err != nil {
			if g.logg != nil {
				g.logg.Error(ctx, "cache rebuild loader failed", err)
			}
			return
		}
		if err := SetWithLogicalExpire(ctx, g, key, val, ttl); err != nil && g.logg != nil {
			g.logg.Error(ctx, "cache rebuild write failed", err)
		}
	}
}
