package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/hireloop-backend/internal/cron"
	"github.com/angelmondragon/hireloop-backend/internal/payments"
	"github.com/angelmondragon/hireloop-backend/internal/subscriptions"
	"github.com/angelmondragon/hireloop-backend/internal/users"
	"github.com/angelmondragon/hireloop-backend/pkg/config"
	"github.com/angelmondragon/hireloop-backend/pkg/db"
	"github.com/angelmondragon/hireloop-backend/pkg/instance"
	"github.com/angelmondragon/hireloop-backend/pkg/logger"
	"github.com/angelmondragon/hireloop-backend/pkg/metrics"
	"github.com/angelmondragon/hireloop-backend/pkg/migrate"
	"github.com/angelmondragon/hireloop-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/hireloop-backend/pkg/stripe"
)

const lockName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single reconcile cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *once); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronMetrics(prometheus.DefaultRegisterer)

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg, paymentMetrics)
	if err != nil {
		return fmt.Errorf("create stripe client: %w", err)
	}

	applier, err := subscriptions.NewApplier(users.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return fmt.Errorf("create subscription applier: %w", err)
	}
	paymentsRepo := payments.NewRepository(dbClient.DB())
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:              paymentsRepo,
		Gateway:           stripeClient,
		Applier:           applier,
		TransactionRunner: dbClient,
		Config:            cfg.Payments,
		Logger:            logg,
		Metrics:           paymentMetrics,
	})
	if err != nil {
		return fmt.Errorf("create payments service: %w", err)
	}

	reconcileJob, err := cron.NewPaymentReconcileJob(cron.PaymentReconcileJobParams{
		Logger:     logg,
		Attempts:   paymentsRepo,
		Gateway:    stripeClient,
		Payments:   paymentsService,
		Metrics:    cronMetrics,
		StaleAfter: cfg.Reconcile.StaleAfter,
		BatchSize:  cfg.Reconcile.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("create reconcile job: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName, cfg.App.Env), cfg.Reconcile.LockTTL)
	if err != nil {
		return fmt.Errorf("create cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		return fmt.Errorf("create cron service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"instance":   instance.GetID(),
		"stripe_env": stripeClient.Environment(),
	})
	if once {
		logg.Info(ctx, "cron.single_cycle")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
