package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/coffeeshop-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/coffeeshop-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/coffeeshop-backend/api/controllers/payments"
	shippingcontrollers "github.com/angelmondragon/coffeeshop-backend/api/controllers/shipping"
	stockcontrollers "github.com/angelmondragon/coffeeshop-backend/api/controllers/stock"
	"github.com/angelmondragon/coffeeshop-backend/api/middleware"
	"github.com/angelmondragon/coffeeshop-backend/internal/orders"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments"
	"github.com/angelmondragon/coffeeshop-backend/internal/shipping"
	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	shippingSvc shipping.Service,
	ledger stockcontrollers.LedgerReader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{"db": dbP}
	var idempotencyStore middleware.ResponseStore
	if redisClient != nil {
		deps["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// The gateway calls back server-to-server without credentials; the
	// signature is the authentication.
	r.Get("/api/v1/payments/vnpay/ipn", paymentcontrollers.IPN(paymentsSvc, logg))

	r.Route("/api/v1/shipping", func(r chi.Router) {
		r.Post("/calculate", shippingcontrollers.Calculate(shippingSvc, logg))
		r.Post("/calculate-for-store", shippingcontrollers.CalculateForStore(shippingSvc, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Post("/validate-voucher", ordercontrollers.ValidateVoucher(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})

		r.Route("/v1/payments", func(r chi.Router) {
			r.Post("/vnpay", paymentcontrollers.Initiate(paymentsSvc, logg))
			r.Get("/status/{orderId}", paymentcontrollers.Status(paymentsSvc, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleStaff, enums.UserRoleAdmin))
			r.Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(ordersSvc, logg))
			r.Get("/stock/{variantId}/{storeId}/movements", stockcontrollers.Movements(ledger, logg))
		})
	})

	return r
}
