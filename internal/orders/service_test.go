package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
)

func setupOrdersDB(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.AutoMigrate(&models.SeckillVoucher{}, &models.VoucherOrder{}))
	return db.NewFromGorm(conn), conn
}

func seedSeckillVoucher(t *testing.T, conn *gorm.DB, voucherID int64, stock int) {
	t.Helper()
	require.NoError(t, conn.Create(&models.SeckillVoucher{
		VoucherID: voucherID,
		Stock:     stock,
		BeginTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}).Error)
}

func setupOrdersService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	client, conn := setupOrdersDB(t)
	service, err := NewService(client, NewRepository(conn), nil, nil)
	require.NoError(t, err)
	return service, conn
}

func TestPersistWritesOrderAndDecrementsStock(t *testing.T) {
	service, conn := setupOrdersService(t)
	seedSeckillVoucher(t, conn, 7, 10)

	err := service.Persist(context.Background(), seckill.Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	require.NoError(t, err)

	var order models.VoucherOrder
	require.NoError(t, conn.First(&order, "id = ?", 55).Error)
	assert.Equal(t, int64(1001), order.UserID)
	assert.Equal(t, models.OrderStatusUnpaid, order.Status)

	var sv models.SeckillVoucher
	require.NoError(t, conn.First(&sv, "voucher_id = ?", 7).Error)
	assert.Equal(t, 9, sv.Stock)
}

func TestPersistRedeliveryIsIdempotent(t *testing.T) {
	service, conn := setupOrdersService(t)
	seedSeckillVoucher(t, conn, 7, 10)

	res := seckill.Reservation{OrderID: 55, VoucherID: 7, UserID: 1001}
	require.NoError(t, service.Persist(context.Background(), res))
	require.NoError(t, service.Persist(context.Background(), res))

	var count int64
	require.NoError(t, conn.Model(&models.VoucherOrder{}).Where("user_id = ? AND voucher_id = ?", 1001, 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var sv models.SeckillVoucher
	require.NoError(t, conn.First(&sv, "voucher_id = ?", 7).Error)
	assert.Equal(t, 9, sv.Stock, "redelivery must not decrement twice")
}

func TestPersistStillWritesOrderWhenDBStockExhausted(t *testing.T) {
	service, conn := setupOrdersService(t)
	seedSeckillVoucher(t, conn, 7, 0)

	err := service.Persist(context.Background(), seckill.Reservation{OrderID: 55, VoucherID: 7, UserID: 1001})
	require.NoError(t, err)

	var order models.VoucherOrder
	assert.NoError(t, conn.First(&order, "id = ?", 55).Error)

	var sv models.SeckillVoucher
	require.NoError(t, conn.First(&sv, "voucher_id = ?", 7).Error)
	assert.Equal(t, 0, sv.Stock, "stock must never go negative")
}

func TestPersistDistinctUsersShareVoucher(t *testing.T) {
	service, conn := setupOrdersService(t)
	seedSeckillVoucher(t, conn, 7, 10)

	require.NoError(t, service.Persist(context.Background(), seckill.Reservation{OrderID: 55, VoucherID: 7, UserID: 1001}))
	require.NoError(t, service.Persist(context.Background(), seckill.Reservation{OrderID: 56, VoucherID: 7, UserID: 1002}))

	var count int64
	require.NoError(t, conn.Model(&models.VoucherOrder{}).Where("voucher_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGetOrderNotFound(t *testing.T) {
	service, _ := setupOrdersService(t)

	_, err := service.GetOrder(context.Background(), 999)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestGetOrderReturnsPersistedOrder(t *testing.T) {
	service, conn := setupOrdersService(t)
	seedSeckillVoucher(t, conn, 7, 10)

	require.NoError(t, service.Persist(context.Background(), seckill.Reservation{OrderID: 55, VoucherID: 7, UserID: 1001}))

	order, err := service.GetOrder(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.VoucherID)
}
