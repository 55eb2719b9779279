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

	"github.com/angelmondragon/mediconnect-backend/api/routes"
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

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotent replay and rate limiting disabled")
	}

	services, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
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
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:         addr,
		Handler:      routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultGatherer, services),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Services, error) {
	conn := dbClient.DB()
	medRepo := medications.NewRepository(conn)
	ledger, err := medications.NewLedger(medRepo)
	if err != nil {
		return routes.Services{}, err
	}
	store, err := requests.NewStore(requests.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Requests:    store,
		Medications: medRepo,
		Patients:    patients.NewRepository(conn),
		Ledger:      ledger,
		Tx:          dbClient,
		Outbox:      outboxSvc,
		Logger:      logg,
		Metrics:     metrics.NewFulfillmentMetrics(prometheus.DefaultRegisterer),
		Config:      cfg.Fulfillment,
	})
	if err != nil {
		return routes.Services{}, err
	}
	medicationSvc, err := medications.NewService(medRepo, ledger, dbClient, outboxSvc)
	if err != nil {
		return routes.Services{}, err
	}
	patientSvc, err := patients.NewService(patients.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Fulfillment: fulfillmentSvc,
		Medications: medicationSvc,
		Patients:    patientSvc,
	}, nil
}
