package shops

import (
	"context"

	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
)

// Repository is the shop data access surface.
type Repository interface {
	GetByID(ctx context.Context, shopID int64) (*models.Shop, error)
	Update(ctx context.Context, tx *gorm.DB, shop *models.Shop) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository builds the GORM-backed shop repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetByID(ctx context.Context, shopID int64) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *gormRepository) Update(ctx context.Context, tx *gorm.DB, shop *models.Shop) error {
	source := r.db
	if tx != nil {
		source = tx
	}
	return source.WithContext(ctx).Save(shop).Error
}
