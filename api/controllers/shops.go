package controllers

import (
	"net/http"

	"github.com/acampos-dev/dealrush-backend/api/responses"
	"github.com/acampos-dev/dealrush-backend/api/validators"
	"github.com/acampos-dev/dealrush-backend/internal/shops"
	"github.com/acampos-dev/dealrush-backend/pkg/db/models"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
)

// ShopDetail serves the hot shop read path.
func ShopDetail(service *shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shopID, err := validators.ParsePathInt64(r, "shopId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		shop, err := service.GetByID(ctx, shopID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, shop)
	}
}

type updateShopRequest struct {
	Name      string `json:"name" validate:"required"`
	TypeID    int64  `json:"type_id"`
	Area      string `json:"area"`
	Address   string `json:"address"`
	AvgPrice  int64  `json:"avg_price"`
	OpenHours string `json:"open_hours"`
}

// ShopUpdate writes the shop row and invalidates its cache entry.
func ShopUpdate(service *shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shopID, err := validators.ParsePathInt64(r, "shopId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var req updateShopRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		shop := &models.Shop{
			ID:        shopID,
			Name:      req.Name,
			TypeID:    req.TypeID,
			Area:      req.Area,
			Address:   req.Address,
			AvgPrice:  req.AvgPrice,
			OpenHours: req.OpenHours,
		}
		if err := service.Update(ctx, shop); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, shop)
	}
}

// ShopPrimeCache seeds a shop's logical-expiry entry ahead of a sale.
func ShopPrimeCache(service *shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shopID, err := validators.ParsePathInt64(r, "shopId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := service.PrimeCache(ctx, shopID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "primed"})
	}
}
