package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
)

// Repository is the durable-order data access surface.
type Repository interface {
	CountByUserAndVoucher(ctx context.Context, tx *gorm.DB, userID, voucherID int64) (int64, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, voucherID int64) (bool, error)
	CreateOrder(ctx context.Context, tx *gorm.DB, order *models.VoucherOrder) error
	GetByID(ctx context.Context, orderID int64) (*models.VoucherOrder, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the GORM-backed order repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) source(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *gormRepository) CountByUserAndVoucher(ctx context.Context, tx *gorm.DB, userID, voucherID int64) (int64, error) {
	var count int64
	err := r.source(tx).WithContext(ctx).
		Model(&models.VoucherOrder{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	return count, err
}

// DecrementStock applies the database-side stock decrement. The stock > 0
// guard makes the update a compare-and-set; zero rows affected means the
// voucher is already sold out at the durable layer.
func (r *gormRepository) DecrementStock(ctx context.Context, tx *gorm.DB, voucherID int64) (bool, error) {
	res := r.source(tx).WithContext(ctx).
		Model(&models.SeckillVoucher{}).
		Where("voucher_id = ? AND stock > 0", voucherID).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreateOrder(ctx context.Context, tx *gorm.DB, order *models.VoucherOrder) error {
	return r.source(tx).WithContext(ctx).Create(order).Error
}

func (r *gormRepository) GetByID(ctx context.Context, orderID int64) (*models.VoucherOrder, error) {
	var order models.VoucherOrder
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
