package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomstore/storefront-backend/api/controllers"
	ordercontrollers "github.com/ecomstore/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/ecomstore/storefront-backend/api/controllers/payments"
	webhookcontrollers "github.com/ecomstore/storefront-backend/api/controllers/webhooks"
	"github.com/ecomstore/storefront-backend/api/middleware"
	checkoutsvc "github.com/ecomstore/storefront-backend/internal/checkout"
	"github.com/ecomstore/storefront-backend/internal/coupons"
	"github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/internal/payments"
	product "github.com/ecomstore/storefront-backend/internal/products"
	"github.com/ecomstore/storefront-backend/internal/recommendations"
	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	pkgredis "github.com/ecomstore/storefront-backend/pkg/redis"
)

// RequestStore backs idempotency replay and rate limiting. *redis.Client satisfies it.
type RequestStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type stripeSecret interface {
	SigningSecret() string
}

type stripeGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Dependencies is everything the HTTP surface needs. Nil services answer 500
// from their handlers; nil Store disables idempotency and rate limiting.
type Dependencies struct {
	Store           RequestStore
	Readiness       map[string]controllers.Pinger
	Gatherer        prometheus.Gatherer
	Orders          orders.Service
	Payments        payments.Service
	Checkout        checkoutsvc.Service
	Coupons         coupons.Service
	Products        product.Service
	Recommendations recommendations.Service
	StripeWebhooks  webhookcontrollers.StripeWebhookService
	StripeClient    stripeSecret
	StripeGuard     stripeGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
		chimiddleware.CleanPath,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          middleware.WindowLimiter
	)
	if deps.Store != nil {
		idempotencyStore = deps.Store
		limiter = deps.Store
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeClient, deps.StripeGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Identity(logg),
				middleware.RateLimit(middleware.RateLimitPolicy{
					Name:   "api",
					Window: cfg.HTTP.RateLimitWindow,
					Limit:  cfg.HTTP.RateLimitPerIP,
				}, limiter, logg),
				middleware.Idempotency(idempotencyStore, logg),
			)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Create(deps.Orders, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Get(deps.Orders, logg))
			})
			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			r.Route("/payments", func(r chi.Router) {
				r.Post("/card", paymentcontrollers.Pay(enums.PaymentMethodCard, deps.Payments, logg))
				r.Post("/pix", paymentcontrollers.Pay(enums.PaymentMethodPix, deps.Payments, logg))
				r.Post("/boleto", paymentcontrollers.Pay(enums.PaymentMethodBoleto, deps.Payments, logg))
				r.Post("/paypal", paymentcontrollers.Pay(enums.PaymentMethodPaypal, deps.Payments, logg))
			})
			r.Post("/coupons/validate", controllers.ValidateCoupon(deps.Coupons, logg))
			r.Get("/products/search", controllers.SearchProducts(deps.Products, logg))
			r.Get("/recommendations", controllers.Recommendations(deps.Recommendations, logg))
		})
	})

	return r
}
