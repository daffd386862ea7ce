package vouchers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/internal/cache"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

const cacheKindSeckillVoucher = "seckill-voucher"

// CreateSeckillVoucherInput carries a new flash-sale voucher definition.
type CreateSeckillVoucherInput struct {
	ShopID      int64           `json:"shop_id"`
	Title       string          `json:"title"`
	SubTitle    string          `json:"sub_title"`
	Rules       string          `json:"rules"`
	PayValue    decimal.Decimal `json:"pay_value"`
	ActualValue decimal.Decimal `json:"actual_value"`
	Stock       int             `json:"stock"`
	BeginTime   time.Time       `json:"begin_time"`
	EndTime     time.Time       `json:"end_time"`
}

func (in CreateSeckillVoucherInput) validate() error {
	switch {
	case in.ShopID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "shop_id is required")
	case in.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case in.Stock <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be positive")
	case in.BeginTime.IsZero() || in.EndTime.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "sale window is required")
	case !in.EndTime.After(in.BeginTime):
		return pkgerrors.New(pkgerrors.CodeValidation, "sale window must end after it begins")
	}
	return nil
}

// Service manages the voucher catalog and seeds the Redis fast-path state
// that the admission script depends on.
type Service struct {
	client   *db.Client
	repo     Repository
	redis    *redis.Client
	guard    *cache.Guard
	logg     *logger.Logger
	entryTTL time.Duration
	nullTTL  time.Duration
}

// NewService wires the voucher service.
func NewService(client *db.Client, repo Repository, rds *redis.Client, guard *cache.Guard, logg *logger.Logger, entryTTL, nullTTL time.Duration) (*Service, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("voucher repository is required")
	}
	if rds == nil {
		return nil, errors.New("redis client is required")
	}
	if guard == nil {
		return nil, errors.New("cache guard is required")
	}
	return &Service{
		client:   client,
		repo:     repo,
		redis:    rds,
		guard:    guard,
		logg:     logg,
		entryTTL: entryTTL,
		nullTTL:  nullTTL,
	}, nil
}

// CreateSeckillVoucher writes the catalog rows and primes Redis with the sale
// stock. The admitted-user set is cleared so a reused voucher id cannot
// inherit stale dedup state. Until the stock key is seeded the admission
// script reads zero stock, so a failed seed rejects buyers instead of
// overselling.
func (s *Service) CreateSeckillVoucher(ctx context.Context, in CreateSeckillVoucherInput) (*models.Voucher, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	voucher := &models.Voucher{
		ShopID:      in.ShopID,
		Title:       in.Title,
		SubTitle:    in.SubTitle,
		Rules:       in.Rules,
		PayValue:    in.PayValue,
		ActualValue: in.ActualValue,
		Type:        models.VoucherTypeSeckill,
		Status:      1,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateVoucher(ctx, tx, voucher); err != nil {
			return err
		}
		sv := &models.SeckillVoucher{
			VoucherID: voucher.ID,
			Stock:     in.Stock,
			BeginTime: in.BeginTime,
			EndTime:   in.EndTime,
		}
		return s.repo.CreateSeckillVoucher(ctx, tx, sv)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating seckill voucher")
	}

	if err := s.redis.Set(ctx, s.redis.StockKey(voucher.ID), in.Stock, 0); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seeding sale stock")
	}
	if err := s.redis.Del(ctx, s.redis.DedupKey(voucher.ID)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing admitted-user set")
	}

	if s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{"voucher_id": voucher.ID, "stock": in.Stock})
		s.logg.Info(lctx, "seckill voucher created")
	}
	return voucher, nil
}

// GetSeckillVoucher resolves flash-sale metadata through the cache with an
// absent-id sentinel. A nil result with nil error means the voucher does not
// exist.
func (s *Service) GetSeckillVoucher(ctx context.Context, voucherID int64) (*models.SeckillVoucher, error) {
	key := s.redis.CacheKey(cacheKindSeckillVoucher, voucherID)
	sv, err := cache.GetWithPassThrough(ctx, s.guard, key, s.entryTTL, s.nullTTL, func(ctx context.Context) (*models.SeckillVoucher, error) {
		found, err := s.repo.GetSeckillVoucher(ctx, voucherID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	return sv, nil
}

// GetVoucher returns a catalog entry by id.
func (s *Service) GetVoucher(ctx context.Context, voucherID int64) (*models.Voucher, error) {
	voucher, err := s.repo.GetVoucher(ctx, voucherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading voucher")
	}
	return voucher, nil
}

// ListByShop returns all vouchers a shop currently offers.
func (s *Service) ListByShop(ctx context.Context, shopID int64) ([]models.Voucher, error) {
	vouchers, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing vouchers")
	}
	return vouchers, nil
}
