package vouchers

import (
	"context"

	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
)

// Repository is the voucher catalog data access surface.
type Repository interface {
	CreateVoucher(ctx context.Context, tx *gorm.DB, voucher *models.Voucher) error
	CreateSeckillVoucher(ctx context.Context, tx *gorm.DB, sv *models.SeckillVoucher) error
	GetVoucher(ctx context.Context, voucherID int64) (*models.Voucher, error)
	GetSeckillVoucher(ctx context.Context, voucherID int64) (*models.SeckillVoucher, error)
	ListByShop(ctx context.Context, shopID int64) ([]models.Voucher, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the GORM-backed voucher repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) source(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormRepository) CreateVoucher(ctx context.Context, tx *gorm.DB, voucher *models.Voucher) error {
	return r.source(tx).WithContext(ctx).Create(voucher).Error
}

func (r *gormRepository) CreateSeckillVoucher(ctx context.Context, tx *gorm.DB, sv *models.SeckillVoucher) error {
	return r.source(tx).WithContext(ctx).Create(sv).Error
}

func (r *gormRepository) GetVoucher(ctx context.Context, voucherID int64) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := r.db.WithContext(ctx).Where("id = ?", voucherID).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *gormRepository) GetSeckillVoucher(ctx context.Context, voucherID int64) (*models.SeckillVoucher, error) {
	var sv models.SeckillVoucher
	if err := r.db.WithContext(ctx).Where("voucher_id = ?", voucherID).First(&sv).Error; err != nil {
		return nil, err
	}
	return &sv, nil
}

func (r *gormRepository) ListByShop(ctx context.Context, shopID int64) ([]models.Voucher, error) {
	var vouchers []models.Voucher
	if err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).Order("id").Find(&vouchers).Error; err != nil {
		return nil, err
	}
	return vouchers, nil
}
