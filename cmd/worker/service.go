package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acampos-dev/dealrush-backend/internal/orders"
	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/pkg/config"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/metrics"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// run wires the order consumer and drains the stream until the context is
// cancelled.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrapping database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrapping redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	seckillMetrics := metrics.NewSeckillMetrics(registry)

	orderService, err := orders.NewService(dbClient, orders.NewRepository(dbClient.DB()), logg, seckillMetrics)
	if err != nil {
		return fmt.Errorf("creating order service: %w", err)
	}

	queue, err := seckill.NewQueue(
		redisClient,
		cfg.Seckill.Stream,
		cfg.Seckill.Group,
		cfg.Seckill.Consumer,
		cfg.Seckill.ReadBlock,
	)
	if err != nil {
		return fmt.Errorf("creating order queue: %w", err)
	}

	consumer, err := seckill.NewConsumer(queue, redisClient, orderService, logg, seckillMetrics, seckill.ConsumerOptions{
		OrderLockTTL:  cfg.Seckill.OrderLockTTL,
		LockRetries:   cfg.Seckill.LockRetries,
		LockRetryWait: cfg.Seckill.LockRetryWait,
		SweepBackoff:  cfg.Seckill.SweepBackoff,
	})
	if err != nil {
		return fmt.Errorf("creating order consumer: %w", err)
	}

	lctx := logg.WithFields(ctx, map[string]any{
		"stream":   cfg.Seckill.Stream,
		"group":    cfg.Seckill.Group,
		"consumer": cfg.Seckill.Consumer,
	})
	return consumer.Run(lctx)
}
