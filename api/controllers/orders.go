package controllers

import (
	"net/http"

	"github.com/acampos-dev/dealrush-backend/api/responses"
	"github.com/acampos-dev/dealrush-backend/api/validators"
	"github.com/acampos-dev/dealrush-backend/internal/orders"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
)

// OrderDetail returns a durable order by id. Admitted orders appear here only
// after the stream consumer has persisted them.
func OrderDetail(service *orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := validators.ParsePathInt64(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := service.GetOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
