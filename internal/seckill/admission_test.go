package seckill

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acampos-dev/dealrush-backend/internal/idgen"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

const testStream = "stream:orders"

type stubVoucherSource struct {
	voucher *models.SeckillVoucher
	err     error
}

func (s *stubVoucherSource) GetSeckillVoucher(ctx context.Context, voucherID int64) (*models.SeckillVoucher, error) {
	return s.voucher, s.err
}

type admissionFixture struct {
	service *Service
	client  *redis.Client
	raw     *goredis.Client
	mr      *miniredis.Miniredis
	source  *stubVoucherSource
}

func setupAdmission(t *testing.T, stock int) *admissionFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := redis.NewFromRaw(raw)

	ids, err := idgen.New(client)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &stubVoucherSource{voucher: &models.SeckillVoucher{
		VoucherID: 7,
		Stock:     stock,
		BeginTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}}

	service, err := NewService(client, ids, source, testStream, nil, nil)
	require.NoError(t, err)
	service.now = func() time.Time { return now }

	mr.Set(client.StockKey(7), strconv.Itoa(stock))

	return &admissionFixture{service: service, client: client, raw: raw, mr: mr, source: source}
}

func (f *admissionFixture) streamEntries(t *testing.T) []goredis.XMessage {
	t.Helper()
	msgs, err := f.raw.XRange(context.Background(), testStream, "-", "+").Result()
	require.NoError(t, err)
	return msgs
}

func TestAdmitAcceptsBuyer(t *testing.T) {
	f := setupAdmission(t, 2)
	ctx := context.Background()

	orderID, err := f.service.Admit(ctx, 1001, 7)
	require.NoError(t, err)
	assert.Positive(t, orderID)

	stock, err := f.mr.Get(f.client.StockKey(7))
	require.NoError(t, err)
	assert.Equal(t, "1", stock)

	isMember, err := f.mr.IsMember(f.client.DedupKey(7), "1001")
	require.NoError(t, err)
	assert.True(t, isMember)

	entries := f.streamEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, strconv.FormatInt(orderID, 10), entries[0].Values["order_id"])
	assert.Equal(t, "7", entries[0].Values["voucher_id"])
	assert.Equal(t, "1001", entries[0].Values["user_id"])
}

func TestAdmitRejectsDuplicateBuyer(t *testing.T) {
	f := setupAdmission(t, 2)
	ctx := context.Background()

	_, err := f.service.Admit(ctx, 1001, 7)
	require.NoError(t, err)

	_, err = f.service.Admit(ctx, 1001, 7)
	assert.ErrorIs(t, err, ErrDuplicateOrder)

	// A duplicate must not burn stock or append a second reservation.
	stock, err := f.mr.Get(f.client.StockKey(7))
	require.NoError(t, err)
	assert.Equal(t, "1", stock)
	assert.Len(t, f.streamEntries(t), 1)
}

func TestAdmitRejectsConcurrentDuplicateBuyer(t *testing.T) {
	f := setupAdmission(t, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	duplicates := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Admit(ctx, 1001, 7)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				admitted++
			case ErrDuplicateOrder:
				duplicates++
			}
		}()
	}
	wg.Wait()

	// One buyer hammering the endpoint gets exactly one reservation no
	// matter how the calls interleave.
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 19, duplicates)

	stock, err := f.mr.Get(f.client.StockKey(7))
	require.NoError(t, err)
	assert.Equal(t, "4", stock)
	assert.Len(t, f.streamEntries(t), 1)
}

func TestAdmitRejectsWhenOutOfStock(t *testing.T) {
	f := setupAdmission(t, 0)

	_, err := f.service.Admit(context.Background(), 1001, 7)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Empty(t, f.streamEntries(t))
}

func TestAdmitRejectsOutsideSaleWindow(t *testing.T) {
	f := setupAdmission(t, 2)
	ctx := context.Background()

	f.service.now = func() time.Time { return f.source.voucher.BeginTime.Add(-time.Minute) }
	_, err := f.service.Admit(ctx, 1001, 7)
	assert.ErrorIs(t, err, ErrSaleNotStarted)

	f.service.now = func() time.Time { return f.source.voucher.EndTime.Add(time.Minute) }
	_, err = f.service.Admit(ctx, 1001, 7)
	assert.ErrorIs(t, err, ErrSaleEnded)
}

func TestAdmitRejectsUnknownVoucher(t *testing.T) {
	f := setupAdmission(t, 2)
	f.source.voucher = nil

	_, err := f.service.Admit(context.Background(), 1001, 7)
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestAdmitNeverOversells(t *testing.T) {
	f := setupAdmission(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	outOfStock := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.service.Admit(ctx, userID, 7)
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				admitted++
			case ErrOutOfStock:
				outOfStock++
			}
		}(int64(2000 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 49, outOfStock)
	assert.Len(t, f.streamEntries(t), 1)
}
