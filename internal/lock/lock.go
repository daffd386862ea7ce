package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// ErrNotAcquired is returned when the retry budget is exhausted without
// winning the lock.
var ErrNotAcquired = errors.New("lock: not acquired")

// Release must compare the stored owner token and delete in one server-side
// step. Two round trips would let a holder whose TTL expired delete a lock
// that has since been re-acquired by someone else.
var unlockScript = goredis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`)

// Mutex is a Redis-backed lock with an owner token and a TTL safety net.
// A fresh token is generated per acquisition so release can verify ownership.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owner  string
}

// NewMutex constructs a lock for the named resource under the lock: namespace.
func NewMutex(client *redis.Client, resource string, ttl time.Duration) (*Mutex, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if resource == "" {
		return nil, errors.New("lock resource is required")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &Mutex{client: client, key: client.LockKey(resource), ttl: ttl}, nil
}

// TryAcquire makes a single attempt to own the lock for the configured TTL.
// The SET NX and the expiry are a single operation; a crash between the two
// would otherwise leave a lock that never expires.
func (m *Mutex) TryAcquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, owner, m.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		m.owner = owner
	}
	return ok, nil
}

// Acquire retries TryAcquire up to attempts times, waiting between tries.
// It returns ErrNotAcquired once the budget is spent.
func (m *Mutex) Acquire(ctx context.Context, attempts int, wait time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		ok, err := m.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return ErrNotAcquired
}

// Release frees the lock only if this mutex still owns it. Releasing a lock
// whose TTL already expired (and may belong to someone else now) is a no-op.
func (m *Mutex) Release(ctx context.Context) error {
	if m.owner == "" {
		return nil
	}
	_, err := m.client.RunScript(ctx, unlockScript, []string{m.key}, m.owner)
	if err != nil {
		return fmt.Errorf("unlock script: %w", err)
	}
	m.owner = ""
	return nil
}

// Key returns the full Redis key guarding the resource.
func (m *Mutex) Key() string {
	return m.key
}
