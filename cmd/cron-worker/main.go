package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mediconnect-backend/internal/cron"
	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/internal/patients"
	"github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	"github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/angelmondragon/mediconnect-backend/pkg/migrate"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/redis"
)

const lockName = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]string{"env": cfg.App.Env},
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

	lock, closeLock := buildLock(cfg, logg)
	defer closeLock()

	conn := dbClient.DB()
	medRepo := medications.NewRepository(conn)
	ledger, err := medications.NewLedger(medRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}
	store, err := requests.NewStore(requests.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create request store", err)
		os.Exit(1)
	}
	outboxRepo := outbox.NewRepository(conn)

	engine, err := fulfillment.NewService(fulfillment.ServiceParams{
		Requests:    store,
		Medications: medRepo,
		Patients:    patients.NewRepository(conn),
		Ledger:      ledger,
		Tx:          dbClient,
		Outbox:      outbox.NewService(outboxRepo, logg),
		Logger:      logg,
		Config:      cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment engine", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	reconcileJob, err := cron.NewStockReconcileJob(cron.StockReconcileJobParams{
		Logger:     logg,
		Journal:    medRepo,
		Reconciler: engine,
		Metrics:    jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock reconcile job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		DeadLetters: outbox.NewDLQRepository(conn),
		Metrics:     jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, retentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildLock prefers a Redis lock shared by every replica. Without Redis the
// worker is assumed to be the only instance.
func buildLock(cfg *config.Config, logg *logger.Logger) (cron.Lock, func()) {
	if !cfg.Redis.Enabled() {
		logg.Warn(context.Background(), "redis not configured; using in-process cron lock")
		return &cron.LocalLock{}, func() {}
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	return lock, func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}
}
