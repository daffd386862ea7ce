package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/metrics"
)

// Service writes admitted reservations to the database. It satisfies the
// stream consumer's Persister contract.
type Service struct {
	client  *db.Client
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.SeckillMetrics
}

// NewService wires the order persistence service.
func NewService(client *db.Client, repo Repository, logg *logger.Logger, m *metrics.SeckillMetrics) (*Service, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	if repo == nil {
		return nil, errors.New("order repository is required")
	}
	return &Service{client: client, repo: repo, logg: logg, metrics: m}, nil
}

// Persist records a reservation as a durable order. Redeliveries are no-ops:
// an existing (user, voucher) order means this reservation already landed.
// The conditional stock decrement is a safety net behind the Redis admission;
// when it reports sold-out the order is still written, because the buyer was
// already admitted, and the mismatch is logged for reconciliation.
func (s *Service) Persist(ctx context.Context, res seckill.Reservation) error {
	start := time.Now()

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.CountByUserAndVoucher(ctx, tx, res.UserID, res.VoucherID)
		if err != nil {
			return fmt.Errorf("counting existing orders: %w", err)
		}
		if count > 0 {
			if s.logg != nil {
				lctx := s.logg.WithFields(ctx, map[string]any{
					"order_id":   res.OrderID,
					"voucher_id": res.VoucherID,
					"user_id":    res.UserID,
				})
				s.logg.Info(lctx, "reservation already persisted, skipping")
			}
			return nil
		}

		decremented, err := s.repo.DecrementStock(ctx, tx, res.VoucherID)
		if err != nil {
			return fmt.Errorf("decrementing stock: %w", err)
		}
		if !decremented && s.logg != nil {
			lctx := s.logg.WithFields(ctx, map[string]any{
				"order_id":   res.OrderID,
				"voucher_id": res.VoucherID,
			})
			s.logg.Warn(lctx, "db stock exhausted for admitted reservation")
		}

		order := &models.VoucherOrder{
			ID:        res.OrderID,
			UserID:    res.UserID,
			VoucherID: res.VoucherID,
			PayType:   1,
			Status:    models.OrderStatusUnpaid,
		}
		if err := s.repo.CreateOrder(ctx, tx, order); err != nil {
			return fmt.Errorf("creating order row: %w", err)
		}
		return nil
	})

	if s.metrics != nil {
		s.metrics.ObservePersistDuration(time.Since(start))
		if err != nil {
			s.metrics.IncPersistFailure()
		}
	}
	return err
}

// GetOrder returns a persisted order by id.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*models.VoucherOrder, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}
