package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/acampos-dev/dealrush-backend/pkg/config"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	stockPrefix   = "seckill:stock"
	dedupPrefix   = "seckill:order"
	lockPrefix    = "lock"
	counterPrefix = "id"
	cachePrefix   = "cache"
)

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Client wraps the redis connection helpers needed by the platform. Key/value
// commands go through the narrow cmdable surface; scripts and streams need the
// full client.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// New bootstraps a Redis client with pooling/timeouts and verifies connectivity.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{store: raw, raw: raw}, nil
}

// NewFromRaw wraps an existing go-redis client (tests point this at miniredis).
func NewFromRaw(raw *redis.Client) *Client {
	return &Client{store: raw, raw: raw}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.DB == 0 {
		opts.DB = cfg.DB
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Set stores a string value with an optional TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Set(ctx, key, value, ttl).Err()
}

// Get returns a string value stored at key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX sets a value only if the key does not exist yet.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errors.New("redis client not initialized")
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// Incr increments the counter stored at key.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	if c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	return c.store.Incr(ctx, key).Result()
}

// Del removes the provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Del(ctx, keys...).Err()
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

// Close shuts down the underlying client if available.
func (c *Client) Close() error {
	if c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// RunScript executes a Lua script (EVALSHA with EVAL fallback).
func (c *Client) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	if c.raw == nil {
		return nil, errors.New("redis client not initialized")
	}
	return script.Run(ctx, c.raw, keys, args...).Result()
}

// StreamEnsureGroup creates the consumer group from the start of the stream,
// tolerating the group already existing.
func (c *Client) StreamEnsureGroup(ctx context.Context, stream, group string) error {
	if c.raw == nil {
		return errors.New("redis client not initialized")
	}
	err := c.raw.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// StreamAdd appends a record to the stream and returns its id.
func (c *Client) StreamAdd(ctx context.Context, stream string, values map[string]any) (string, error) {
	if c.raw == nil {
		return "", errors.New("redis client not initialized")
	}
	return c.raw.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
}

// StreamReadGroup reads up to count messages for the group consumer starting
// at id (">" for new arrivals, "0" for the consumer's pending backlog). A
// timed-out blocking read returns an empty slice and no error.
func (c *Client) StreamReadGroup(ctx context.Context, group, consumer, stream, id string, count int64, block time.Duration) ([]redis.XMessage, error) {
	if c.raw == nil {
		return nil, errors.New("redis client not initialized")
	}
	res, err := c.raw.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0].Messages, nil
}

// StreamAck acknowledges processed stream entries for the group.
func (c *Client) StreamAck(ctx context.Context, stream, group string, ids ...string) error {
	if c.raw == nil {
		return errors.New("redis client not initialized")
	}
	return c.raw.XAck(ctx, stream, group, ids...).Err()
}

// StockKey returns the stock counter key for a flash-sale voucher.
func (c *Client) StockKey(voucherID int64) string {
	return buildKey(stockPrefix, strconv.FormatInt(voucherID, 10))
}

// DedupKey returns the admitted-user set key for a flash-sale voucher.
func (c *Client) DedupKey(voucherID int64) string {
	return buildKey(dedupPrefix, strconv.FormatInt(voucherID, 10))
}

// LockKey returns a namespaced lock key for the contended resource.
func (c *Client) LockKey(resource string) string {
	return buildKey(lockPrefix, resource)
}

// CounterKey returns the daily id-counter key for a business domain.
func (c *Client) CounterKey(domain, day string) string {
	return buildKey(counterPrefix, domain, day)
}

// CacheKey returns a namespaced cache key for an entity kind and id.
func (c *Client) CacheKey(kind string, id int64) string {
	return buildKey(cachePrefix, kind, strconv.FormatInt(id, 10))
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
