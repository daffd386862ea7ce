package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acampos-dev/dealrush-backend/api/controllers"
	"github.com/acampos-dev/dealrush-backend/api/middleware"
	"github.com/acampos-dev/dealrush-backend/internal/orders"
	"github.com/acampos-dev/dealrush-backend/internal/seckill"
	"github.com/acampos-dev/dealrush-backend/internal/shops"
	"github.com/acampos-dev/dealrush-backend/internal/vouchers"
	"github.com/acampos-dev/dealrush-backend/pkg/config"
	"github.com/acampos-dev/dealrush-backend/pkg/db"
	"github.com/acampos-dev/dealrush-backend/pkg/logger"
	"github.com/acampos-dev/dealrush-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	admissionService *seckill.Service,
	voucherService *vouchers.Service,
	shopService *shops.Service,
	orderService *orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/seckill", controllers.VoucherCreateSeckill(voucherService, logg))
			r.Post("/{voucherId}/orders", controllers.VoucherSeckillOrder(admissionService, logg))
		})

		r.Route("/shops", func(r chi.Router) {
			r.Get("/{shopId}", controllers.ShopDetail(shopService, logg))
			r.Put("/{shopId}", controllers.ShopUpdate(shopService, logg))
			r.Post("/{shopId}/cache", controllers.ShopPrimeCache(shopService, logg))
			r.Get("/{shopId}/vouchers", controllers.VoucherListByShop(voucherService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
		})
	})

	return r
}
