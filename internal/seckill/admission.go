package seckill

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/acampos-dev/dealrush-backend/internal/idgen"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/metrics"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

// Admission outcomes surfaced to callers.
var (
	ErrSaleNotStarted  = errors.New("seckill: sale has not started")
	ErrSaleEnded       = errors.New("seckill: sale has ended")
	ErrOutOfStock      = errors.New("seckill: out of stock")
	ErrDuplicateOrder  = errors.New("seckill: user already ordered")
	ErrVoucherNotFound = errors.New("seckill: voucher not found")
)

// admitScript decides admission in one atomic server-side step. The stock
// check, the one-per-user check, the decrement and the stream append either
// all happen or none do, so concurrent buyers can never oversell or double
// order. Checks run before writes: a duplicate buyer must not burn stock. A
// retried call for an already admitted user short-circuits at the SISMEMBER
// check and never appends a second reservation.
//
// KEYS[1] stock counter, KEYS[2] admitted-user set, KEYS[3] order stream.
// ARGV[1] voucher id, ARGV[2] user id, ARGV[3] pre-assigned order id.
var admitScript = goredis.NewScript(`
if tonumber(redis.call('get', KEYS[1]) or '0') <= 0 then
    return 1
end
if redis.call('sismember', KEYS[2], ARGV[2]) == 1 then
    return 2
end
redis.call('decr', KEYS[1])
redis.call('sadd', KEYS[2], ARGV[2])
redis.call('xadd', KEYS[3], '*', 'order_id', ARGV[3], 'voucher_id', ARGV[1], 'user_id', ARGV[2])
return 0
`)

const (
	admitOK          = 0
	admitOutOfStock  = 1
	admitDuplicate   = 2
	orderIDDomain    = "order"
	fieldOrderID     = "order_id"
	fieldVoucherID   = "voucher_id"
	fieldUserID      = "user_id"
	resultAdmitted   = "admitted"
	resultOutOfStock = "out_of_stock"
	resultDuplicate  = "duplicate"
	resultNotStarted = "not_started"
	resultEnded      = "ended"
	resultError      = "error"
)

// VoucherSource resolves flash-sale voucher metadata for the window check.
type VoucherSource interface {
	GetSeckillVoucher(ctx context.Context, voucherID int64) (*models.SeckillVoucher, error)
}

// Service runs the synchronous admission path. It never touches the database;
// all fast-path state lives in Redis.
type Service struct {
	client   *redis.Client
	ids      *idgen.Generator
	vouchers VoucherSource
	stream   string
	logg     *logger.Logger
	metrics  *metrics.SeckillMetrics
	now      func() time.Time
}

// NewService wires the admission service.
func NewService(client *redis.Client, ids *idgen.Generator, vouchers VoucherSource, stream string, logg *logger.Logger, m *metrics.SeckillMetrics) (*Service, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if vouchers == nil {
		return nil, errors.New("voucher source is required")
	}
	if stream == "" {
		return nil, errors.New("order stream name is required")
	}
	return &Service{
		client:   client,
		ids:      ids,
		vouchers: vouchers,
		stream:   stream,
		logg:     logg,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// Admit decides whether userID may buy voucherID. On success it returns the
// pre-assigned order id; the durable order row is written later by the stream
// consumer. The sale-window check runs outside the script against voucher
// metadata, so a clock-skewed Redis cannot admit outside the window.
func (s *Service) Admit(ctx context.Context, userID, voucherID int64) (int64, error) {
	voucher, err := s.vouchers.GetSeckillVoucher(ctx, voucherID)
	if err != nil {
		s.count(resultError)
		return 0, fmt.Errorf("loading seckill voucher %d: %w", voucherID, err)
	}
	if voucher == nil {
		s.count(resultError)
		return 0, ErrVoucherNotFound
	}

	now := s.now()
	if now.Before(voucher.BeginTime) {
		s.count(resultNotStarted)
		return 0, ErrSaleNotStarted
	}
	if now.After(voucher.EndTime) {
		s.count(resultEnded)
		return 0, ErrSaleEnded
	}

	orderID, err := s.ids.Next(ctx, orderIDDomain)
	if err != nil {
		s.count(resultError)
		return 0, fmt.Errorf("assigning order id: %w", err)
	}

	res, err := s.client.RunScript(ctx, admitScript,
		[]string{s.client.StockKey(voucherID), s.client.DedupKey(voucherID), s.stream},
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(orderID, 10),
	)
	if err != nil {
		s.count(resultError)
		return 0, fmt.Errorf("running admission script: %w", err)
	}

	code, ok := res.(int64)
	if !ok {
		s.count(resultError)
		return 0, fmt.Errorf("unexpected admission script result %v", res)
	}

	switch code {
	case admitOK:
		s.count(resultAdmitted)
		if s.logg != nil {
			lctx := s.logg.WithFields(ctx, map[string]any{
				"user_id":    userID,
				"voucher_id": voucherID,
				"order_id":   orderID,
			})
			s.logg.Info(lctx, "order admitted")
		}
		return orderID, nil
	case admitOutOfStock:
		s.count(resultOutOfStock)
		return 0, ErrOutOfStock
	case admitDuplicate:
		s.count(resultDuplicate)
		return 0, ErrDuplicateOrder
	default:
		s.count(resultError)
		return 0, fmt.Errorf("unknown admission script result %d", code)
	}
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.IncAdmission(result)
	}
}

// Reservation is the unit of work flowing from admission to persistence.
// CreatedAt comes from the stream entry id, so it reflects admission time,
// not delivery time.
type Reservation struct {
	OrderID   int64
	VoucherID int64
	UserID    int64
	CreatedAt time.Time
}
