package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hireloop-backend/api/routes"
	"github.com/angelmondragon/hireloop-backend/internal/payments"
	"github.com/angelmondragon/hireloop-backend/internal/subscriptions"
	"github.com/angelmondragon/hireloop-backend/internal/users"
	stripewebhook "github.com/angelmondragon/hireloop-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/db"
	"github.com/angelmondragon/hireloop-backend/pkg/instance"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	"github.com/angelmondragon/hireloop-backend/pkg/metrics"
	"github.com/angelmondragon/hireloop-backend/pkg/migrate"
	"github.com/angelmondragon/hireloop-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
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
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg, paymentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	applier, err := subscriptions.NewApplier(usersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription applier", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:              payments.NewRepository(dbClient.DB()),
		Gateway:           stripeClient,
		Applier:           applier,
		TransactionRunner: dbClient,
		Config:            cfg.Payments,
		Logger:            logg,
		Metrics:           paymentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookDedupeTTL, stripewebhook.Scope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, paymentsService, usersRepo, stripeClient, webhookGuard),
	}

	if err := serve(ctx, cfg, logg, server, redisClient, dbClient); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
}

type closer interface {
	Close() error
}

// serve blocks until the server fails or ctx is cancelled, then drains
// in-flight requests and closes the backing clients.
func serve(ctx context.Context, cfg *config.Config, logg *logger.Logger, server *http.Server, resources ...closer) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	var errs error
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = multierr.Append(errs, err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = multierr.Append(errs, err)
	}
	for _, res := range resources {
		errs = multierr.Append(errs, res.Close())
	}
	return errs
}
