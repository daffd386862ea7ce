package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/acampos-dev/dealrush-backend/api/responses"
	"github.com/acampos-dev/dealrush-backend/api/validators"
	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/internal/vouchers"
	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

type createSeckillVoucherRequest struct {
	ShopID      int64           `json:"shop_id" validate:"required,gt=0"`
	Title       string          `json:"title" validate:"required"`
	SubTitle    string          `json:"sub_title"`
	Rules       string          `json:"rules"`
	PayValue    decimal.Decimal `json:"pay_value"`
	ActualValue decimal.Decimal `json:"actual_value"`
	Stock       int             `json:"stock" validate:"required,gt=0"`
	BeginTime   time.Time       `json:"begin_time" validate:"required"`
	EndTime     time.Time       `json:"end_time" validate:"required"`
}

// VoucherCreateSeckill registers a flash-sale voucher and seeds its Redis
// stock.
func VoucherCreateSeckill(service *vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createSeckillVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		voucher, err := service.CreateSeckillVoucher(ctx, vouchers.CreateSeckillVoucherInput{
			ShopID:      req.ShopID,
			Title:       req.Title,
			SubTitle:    req.SubTitle,
			Rules:       req.Rules,
			PayValue:    req.PayValue,
			ActualValue: req.ActualValue,
			Stock:       req.Stock,
			BeginTime:   req.BeginTime,
			EndTime:     req.EndTime,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, voucher)
	}
}

// VoucherSeckillOrder runs the synchronous admission path. A 202 means the
// buyer is admitted and the durable order will follow asynchronously.
func VoucherSeckillOrder(admission *seckill.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		voucherID, err := validators.ParsePathInt64(r, "voucherId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := validators.ParseHeaderInt64(r, userIDHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithUserID(ctx, userID)
			ctx = logg.WithVoucherID(ctx, voucherID)
		}

		orderID, err := admission.Admit(ctx, userID, voucherID)
		if err != nil {
			responses.WriteError(ctx, logg, w, mapAdmissionError(err))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"order_id": orderID})
	}
}

func mapAdmissionError(err error) error {
	switch {
	case errors.Is(err, seckill.ErrVoucherNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
	case errors.Is(err, seckill.ErrSaleNotStarted):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale has not started")
	case errors.Is(err, seckill.ErrSaleEnded):
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale has ended")
	case errors.Is(err, seckill.ErrOutOfStock):
		return pkgerrors.New(pkgerrors.CodeConflict, "out of stock")
	case errors.Is(err, seckill.ErrDuplicateOrder):
		return pkgerrors.New(pkgerrors.CodeConflict, "already purchased")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "admission unavailable")
	}
}

// VoucherListByShop returns the vouchers a shop offers.
func VoucherListByShop(service *vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shopID, err := validators.ParsePathInt64(r, "shopId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := service.ListByShop(ctx, shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
