package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursevault/coursevault-backend/api/controllers"
	"github.com/coursevault/coursevault-backend/api/middleware"
	"github.com/coursevault/coursevault-backend/internal/access"
	"github.com/coursevault/coursevault-backend/internal/bindings"
	"github.com/coursevault/coursevault-backend/internal/fingerprint"
	"github.com/coursevault/coursevault-backend/internal/orders"
	"github.com/coursevault/coursevault-backend/internal/payments"
	"github.com/coursevault/coursevault-backend/pkg/config"
	"github.com/coursevault/coursevault-backend/pkg/logger"

	pkgredis "github.com/coursevault/coursevault-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	backends map[string]controllers.Pinger,
	idemStore pkgredis.IdempotencyStore,
	provider fingerprint.Provider,
	verifier access.Verifier,
	bindingStore *bindings.Store,
	ordersSvc orders.Service,
	ledger *payments.Ledger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, backends))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Fingerprint derivation is pure and needs no caller identity; the
	// player calls it before the user is known.
	r.Post("/api/v1/device/fingerprint", controllers.DeviceFingerprint(provider, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(idemStore, cfg.Payment.IdempotencyTTL, logg))

		r.Post("/access/verify", controllers.AccessVerify(verifier, logg))

		r.Route("/licenses", func(r chi.Router) {
			r.Get("/", controllers.LicenseList(bindingStore, logg))
			r.Get("/{courseID}", controllers.LicenseGet(bindingStore, logg))
			r.Post("/{courseID}/revoke", controllers.LicenseRevoke(bindingStore, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/", controllers.OrderList(ordersSvc, logg))
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", controllers.OrderGet(ordersSvc, logg))
				r.Post("/payment", controllers.OrderPayment(ordersSvc, logg))
				r.Post("/redeem", controllers.OrderRedeem(ordersSvc, logg))
				r.Post("/complete", controllers.OrderComplete(ordersSvc, logg))
				r.Post("/cancel", controllers.OrderCancel(ordersSvc, logg))
			})
		})

		r.Get("/payments", controllers.PaymentList(ledger, logg))
	})

	return r
}
