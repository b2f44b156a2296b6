package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pharmexa/pharmastock-backend/api/routes"
	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/internal/audit"
	"github.com/pharmexa/pharmastock-backend/internal/categories"
	"github.com/pharmexa/pharmastock-backend/internal/guard"
	"github.com/pharmexa/pharmastock-backend/internal/medications"
	"github.com/pharmexa/pharmastock-backend/internal/replenishments"
	"github.com/pharmexa/pharmastock-backend/internal/users"
	"github.com/pharmexa/pharmastock-backend/pkg/config"
	"github.com/pharmexa/pharmastock-backend/pkg/db"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/metrics"
	"github.com/pharmexa/pharmastock-backend/pkg/migrate"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	mutationGuard := guard.NewGuard(metrics.NewGuardMetrics(registry))

	auditRepo := audit.NewRepository(dbClient.DB())
	recorder, err := audit.NewRecorder(auditRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	alertService, err := alerts.NewService(alerts.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create alert service", err)
		os.Exit(1)
	}

	medicationService, err := medications.NewService(
		medications.NewRepository(dbClient.DB()),
		dbClient,
		mutationGuard,
		recorder,
		alertService,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create medication service", err)
		os.Exit(1)
	}

	replenishmentService, err := replenishments.NewService(replenishments.NewRepository(dbClient.DB()), dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create replenishment service", err)
		os.Exit(1)
	}

	categoryService, err := categories.NewService(categories.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}

	userService, err := users.NewService(users.ServiceParams{
		Repo:        users.NewRepository(dbClient.DB()),
		JWTConfig:   cfg.JWT,
		PasswordCfg: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Registry:        registry,
			Users:           userService,
			Medications:     medicationService,
			Alerts:          alertService,
			Replenishments:  replenishmentService,
			Categories:      categoryService,
			AuditRepository: auditRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
