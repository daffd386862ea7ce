package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acampos-dev/dealrush-backend/api/routes"
	"github.com/acampos-dev/dealrush-backend/internal/cache"
	"github.com/acampos-dev/dealrush-backend/internal/idgen"
	"github.com/acampos-dev/dealrush-backend/internal/orders"
	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/internal/shops"
	"github.com/acampos-dev/dealrush-backend/internal/vouchers"
	"github.com/acampos-dev/dealrush-backend/pkg/config"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/metrics"
	"github.com/acampos-dev/dealrush-backend/pkg/migrate"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	rebuildPool := cache.NewRebuildPool(cfg.Cache.RebuildWorkers, cfg.Cache.RebuildQueue, logg)
	rebuildPool.Start()
	defer rebuildPool.Stop()

	guard, err := cache.NewGuard(redisClient, logg, rebuildPool, cfg.Cache.RebuildLockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cache guard", err)
		os.Exit(1)
	}

	ids, err := idgen.New(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create id generator", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	seckillMetrics := metrics.NewSeckillMetrics(registry)

	voucherService, err := vouchers.NewService(
		dbClient,
		vouchers.NewRepository(dbClient.DB()),
		redisClient,
		guard,
		logg,
		cfg.Cache.EntryTTL,
		cfg.Cache.NullTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}

	shopService, err := shops.NewService(
		dbClient,
		shops.NewRepository(dbClient.DB()),
		redisClient,
		guard,
		logg,
		cfg.Cache.LogicalTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create shop service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(dbClient, orders.NewRepository(dbClient.DB()), logg, seckillMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	admissionService, err := seckill.NewService(redisClient, ids, voucherService, cfg.Seckill.Stream, logg, seckillMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create admission service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			admissionService,
			voucherService,
			shopService,
			orderService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
