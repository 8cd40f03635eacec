package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pos-checkout/api/controllers"
	checkoutcontrollers "github.com/angelmondragon/pos-checkout/api/controllers/checkout"
	"github.com/angelmondragon/pos-checkout/api/middleware"
	checkoutsvc "github.com/angelmondragon/pos-checkout/internal/checkout"
	"github.com/angelmondragon/pos-checkout/pkg/config"
	"github.com/angelmondragon/pos-checkout/pkg/enums"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
	"github.com/angelmondragon/pos-checkout/pkg/redis"
)

// RedisClient is the redis surface the HTTP layer needs. Pass nil when redis is not configured.
type RedisClient interface {
	redis.Pinger
	redis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient RedisClient,
	gatherer prometheus.Gatherer,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		pinger redis.Pinger
		store  redis.IdempotencyStore
	)
	if redisClient != nil {
		pinger = redisClient
		store = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleStaff))
		r.Use(middleware.Idempotency(store, cfg.Idempotency.TTL, logg))

		r.Post("/sessions", checkoutcontrollers.OpenSession(checkoutService, logg))
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.GetSession(checkoutService, logg))
			r.Delete("/", checkoutcontrollers.CloseSession(checkoutService, logg))

			r.Post("/lines", checkoutcontrollers.AddLine(checkoutService, logg))
			r.Post("/lines/{productId}/increment", checkoutcontrollers.IncrementLine(checkoutService, logg))
			r.Post("/lines/{productId}/decrement", checkoutcontrollers.DecrementLine(checkoutService, logg))
			r.Delete("/lines/{productId}", checkoutcontrollers.RemoveLine(checkoutService, logg))

			r.Put("/customer", checkoutcontrollers.SelectCustomer(checkoutService, logg))
			r.Put("/payment-method", checkoutcontrollers.SetPaymentMethod(checkoutService, logg))

			r.Get("/products", checkoutcontrollers.SearchProducts(checkoutService, logg))
			r.Get("/customers", checkoutcontrollers.SearchCustomers(checkoutService, logg))

			r.Post("/submit", checkoutcontrollers.Submit(checkoutService, logg))
		})
	})

	return r
}
