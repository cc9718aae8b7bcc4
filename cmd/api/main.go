package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ecomstore/storefront-backend/api/controllers"
	"github.com/ecomstore/storefront-backend/api/routes"
	"github.com/ecomstore/storefront-backend/internal/cart"
	checkoutsvc "github.com/ecomstore/storefront-backend/internal/checkout"
	"github.com/ecomstore/storefront-backend/internal/coupons"
	"github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/internal/payments"
	product "github.com/ecomstore/storefront-backend/internal/products"
	"github.com/ecomstore/storefront-backend/internal/recommendations"
	stripewebhook "github.com/ecomstore/storefront-backend/internal/webhooks/stripe"
	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/db"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/metrics"
	"github.com/ecomstore/storefront-backend/pkg/migrate"
	"github.com/ecomstore/storefront-backend/pkg/outbox"
	"github.com/ecomstore/storefront-backend/pkg/redis"
	"github.com/ecomstore/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	// Card payments and the Stripe webhook need credentials; the local methods do not.
	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "stripe disabled; card payments will be rejected")
		stripeClient = nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	couponSvc, err := coupons.NewService(coupons.NewRepository(gormDB), time.Now)
	exitOnErr(logg, "coupon service", err)

	ordersSvc, err := orders.NewService(ordersRepo, couponSvc, dbClient, outboxSvc, logg)
	exitOnErr(logg, "orders service", err)

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Orders:  ordersRepo,
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Cart:    cart.NewRepository(gormDB),
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	exitOnErr(logg, "payment reconciler", err)

	var intents payments.IntentClient
	if stripeClient != nil {
		intents = payments.NewStripeIntentClient(stripeClient)
	}
	dispatcher, err := payments.NewDispatcher(paymentMetrics, logg,
		payments.NewCardAdapter(intents),
		payments.NewPixAdapter(cfg.Payments, time.Now, nil),
		payments.NewBoletoAdapter(cfg.Payments, time.Now, nil),
		payments.NewPaypalAdapter(cfg.Payments, nil),
	)
	exitOnErr(logg, "payment dispatcher", err)

	paymentSvc, err := payments.NewService(ordersRepo, dispatcher, reconciler, logg)
	exitOnErr(logg, "payments service", err)

	checkoutService, err := checkoutsvc.NewService(ordersSvc, paymentSvc, logg)
	exitOnErr(logg, "checkout service", err)

	productSvc, err := product.NewService(product.NewRepository(gormDB))
	exitOnErr(logg, "product service", err)

	recommendationSvc, err := recommendations.NewService(recommendations.NewRepository(gormDB), redisClient, logg)
	exitOnErr(logg, "recommendation service", err)

	deps := routes.Dependencies{
		Store: redisClient,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Gatherer:        registry,
		Orders:          ordersSvc,
		Payments:        paymentSvc,
		Checkout:        checkoutService,
		Coupons:         couponSvc,
		Products:        productSvc,
		Recommendations: recommendationSvc,
	}
	if stripeClient != nil {
		webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: reconciler, Logger: logg})
		exitOnErr(logg, "stripe webhook service", err)
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
		exitOnErr(logg, "stripe webhook guard", err)
		deps.StripeWebhooks = webhookSvc
		deps.StripeClient = stripeClient
		deps.StripeGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func exitOnErr(logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}
