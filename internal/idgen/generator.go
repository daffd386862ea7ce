package idgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// Ids are composed of seconds since the epoch shifted left by counterBits,
// OR-ed with a per-domain daily counter kept in Redis. The counter key changes
// every calendar day, so the sequence resets implicitly. Overflowing 32 bits
// would take more than 4 billion ids per domain per day; that is documented as
// out of range rather than handled.
const (
	epochSeconds = 1640995200 // 2022-01-01T00:00:00Z
	counterBits  = 32
)

const dayLayout = "2006:01:02"

// Generator issues unique, roughly time-ordered 64-bit ids per business domain.
type Generator struct {
	client *redis.Client
	now    func() time.Time
}

// New builds an id generator backed by the shared Redis client.
func New(client *redis.Client) (*Generator, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &Generator{client: client, now: time.Now}, nil
}

// Next returns the next id for the given domain. There is deliberately no
// local fallback when Redis is unreachable: a locally invented counter could
// collide with ids issued by other instances.
func (g *Generator) Next(ctx context.Context, domain string) (int64, error) {
	if domain == "" {
		return 0, errors.New("id domain is required")
	}

	ts := g.now().UTC()
	seconds := ts.Unix() - epochSeconds

	key := g.client.CounterKey(domain, ts.Format(dayLayout))
	count, err := g.client.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("incrementing id counter: %w", err)
	}

	return seconds<<counterBits | count, nil
}
