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

	"github.com/angelmondragon/profitlens/api/controllers"
	"github.com/angelmondragon/profitlens/api/routes"
	"github.com/angelmondragon/profitlens/internal/app"
	"github.com/angelmondragon/profitlens/internal/snapshots"
	"github.com/angelmondragon/profitlens/pkg/bigquery"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/metrics"
	"github.com/angelmondragon/profitlens/pkg/migrate"
	"github.com/angelmondragon/profitlens/pkg/redis"
	"github.com/angelmondragon/profitlens/pkg/sheets"
	"github.com/angelmondragon/profitlens/pkg/storage/gcs"
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

	readiness := []controllers.ReadinessCheck{{Name: "db", Pinger: dbClient}}

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
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis", Pinger: redisClient})
	} else {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "redis"})
	}

	var bqClient *bigquery.Client
	if cfg.BigQuery.Enabled {
		resultTable, err := snapshots.ResultTable(cfg.BigQuery.SnapshotTable)
		if err == nil {
			bqClient, err = bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg, resultTable)
		}
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		readiness = append(readiness, controllers.ReadinessCheck{Name: "bigquery", Pinger: bqClient})
	} else {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "bigquery"})
	}

	var gcsClient *gcs.Client
	if cfg.GCS.Enabled() {
		gcsClient, err = gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		readiness = append(readiness, controllers.ReadinessCheck{Name: "gcs", Pinger: gcsClient})
	} else {
		readiness = append(readiness, controllers.ReadinessCheck{Name: "gcs"})
	}

	var sheetsClient *sheets.Client
	if cfg.Sheets.Enabled {
		sheetsClient, err = sheets.NewClient(context.Background(), cfg.GCP, cfg.Sheets, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap sheets client", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := app.Build(app.Params{
		Config:      cfg,
		DB:          dbClient,
		Logger:      logg,
		BigQuery:    bqClient,
		Sheets:      sheetsClient,
		GCS:         gcsClient,
		CalcMetrics: metrics.NewCalculationMetrics(registry),
		SyncMetrics: metrics.NewSyncMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"sheets": sheetsClient != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			Readiness:   readiness,
			Redis:       redisClient,
			HTTPMetrics: metrics.NewHTTPMetrics(registry),
			Metrics:     metrics.Handler(registry),
		}, services),
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
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
