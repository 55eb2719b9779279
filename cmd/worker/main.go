package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mediconnect-backend/internal/stockwatch"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/mediconnect-backend/pkg/pubsub"
	"github.com/angelmondragon/mediconnect-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]string{"env": cfg.App.Env},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	deduper, err := idempotency.NewDeduper(redisClient, stockwatch.ConsumerName, cfg.StockWatch.DedupeTTL)
	if err != nil {
		logg.Error(ctx, "failed to create event deduper", err)
		os.Exit(1)
	}
	watcher, err := stockwatch.NewWatcher(cfg.StockWatch.LowStockThreshold, metrics.NewStockMetrics(prometheus.DefaultRegisterer), logg)
	if err != nil {
		logg.Error(ctx, "failed to create stock watcher", err)
		os.Exit(1)
	}
	subscriber := pubsubClient.Subscriber(cfg.PubSub.InventorySubscription)
	if subscriber == nil {
		logg.Error(ctx, "inventory subscription not configured", errors.New(cfg.PubSub.InventorySubscription))
		os.Exit(1)
	}
	consumer, err := stockwatch.NewService(subscriber, watcher, deduper, logg)
	if err != nil {
		logg.Error(ctx, "failed to create stockwatch consumer", err)
		os.Exit(1)
	}

	svc, err := NewService(ServiceParams{
		Logger:   logg,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.InventorySubscription), "starting worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}
