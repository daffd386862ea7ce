package shops

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/internal/cache"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

const cacheKindShop = "shop"

// Service serves the hot shop read path through the logical-expiry cache and
// keeps the cache coherent on writes.
type Service struct {
	client     *db.Client
	repo       Repository
	redis      *redis.Client
	guard      *cache.Guard
	logg       *logger.Logger
	logicalTTL time.Duration
}

// NewService wires the shop service.
func NewService(client *db.Client, repo Repository, rds *redis.Client, guard *cache.Guard, logg *logger.Logger, logicalTTL time.Duration) (*Service, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("shop repository is required")
	}
	if rds == nil {
		return nil, errors.New("redis client is required")
	}
	if guard == nil {
		return nil, errors.New("cache guard is required")
	}
	return &Service{client: client, repo: repo, redis: rds, guard: guard, logg: logg, logicalTTL: logicalTTL}, nil
}

// GetByID reads a shop through the logical-expiry cache. Hot shops must be
// primed first (PrimeCache); an unprimed id reads as not found rather than
// falling through to the database under load.
func (s *Service) GetByID(ctx context.Context, shopID int64) (*models.Shop, error) {
	key := s.redis.CacheKey(cacheKindShop, shopID)
	shop, err := cache.GetWithLogicalExpire(ctx, s.guard, key, s.logicalTTL, s.loader(shopID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shop cache")
	}
	return shop, nil
}

// Update writes the shop row and then invalidates its cache entry. The order
// matters: deleting first would let a concurrent read re-prime the old value.
func (s *Service) Update(ctx context.Context, shop *models.Shop) error {
	if shop == nil || shop.ID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, shop)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating shop")
	}

	if err := s.redis.Del(ctx, s.redis.CacheKey(cacheKindShop, shop.ID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidating shop cache")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "shop_id", shop.ID), "shop updated")
	}
	return nil
}

// PrimeCache loads a shop from the database and seeds its logical-expiry
// entry. Run for every shop expected to take flash-sale traffic.
func (s *Service) PrimeCache(ctx context.Context, shopID int64) error {
	shop, err := s.repo.GetByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
	}
	key := s.redis.CacheKey(cacheKindShop, shopID)
	if err := cache.SetWithLogicalExpire(ctx, s.guard, key, shop, s.logicalTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "priming shop cache")
	}
	return nil
}

func (s *Service) loader(shopID int64) func(context.Context) (*models.Shop, error) {
	return func(ctx context.Context) (*models.Shop, error) {
		shop, err := s.repo.GetByID(ctx, shopID)
		if err != nil {
			return nil, err
		}
		return shop, nil
	}
}
