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

	"github.com/angelmondragon/profitlens/internal/app"
	"github.com/angelmondragon/profitlens/internal/cron"
	"github.com/angelmondragon/profitlens/internal/snapshots"
	"github.com/angelmondragon/profitlens/pkg/bigquery"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/instance"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/metrics"
	"github.com/angelmondragon/profitlens/pkg/migrate"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/angelmondragon/profitlens/pkg/redis"
	"github.com/angelmondragon/profitlens/pkg/sheets"
	"github.com/angelmondragon/profitlens/pkg/storage/gcs"
)

const lockName = "cron-worker:%s"

func main() {
	once := flag.Bool("once", false, "run every job once and exit")
	only := flag.String("job", "", "run only the named job once and exit")
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

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
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
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
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
	}

	var gcsClient *gcs.Client
	if cfg.GCS.Enabled() {
		gcsClient, err = gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs", err)
			os.Exit(1)
		}
	}

	var sheetsClient *sheets.Client
	if cfg.Sheets.Enabled && cfg.Cron.SheetsEnabled {
		sheetsClient, err = sheets.NewClient(context.Background(), cfg.GCP, cfg.Sheets, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap sheets client", err)
			os.Exit(1)
		}
	}

	services, err := app.Build(app.Params{
		Config:      cfg,
		DB:          dbClient,
		Logger:      logg,
		BigQuery:    bqClient,
		Sheets:      sheetsClient,
		GCS:         gcsClient,
		SyncMetrics: metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if cfg.Cron.SnapshotEnabled {
		job, err := cron.NewMonthlySnapshotJob(cron.MonthlySnapshotJobParams{Logger: logg, Snapshots: services.Snapshots})
		if err != nil {
			logg.Error(context.Background(), "failed to create snapshot job", err)
			os.Exit(1)
		}
		mustRegister(logg, registry, job)
	}
	if services.Sync != nil {
		job, err := cron.NewSheetsPushJob(cron.SheetsPushJobParams{Logger: logg, Sync: services.Sync})
		if err != nil {
			logg.Error(context.Background(), "failed to create sheets push job", err)
			os.Exit(1)
		}
		mustRegister(logg, registry, job)
	}

	if cfg.PubSub.Enabled() {
		job, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
			Logger:      logg,
			DB:          dbClient,
			Repository:  outbox.NewRepository(dbClient.DB()),
			Retention:   cfg.Outbox.RetentionDays,
			MinAttempts: cfg.Outbox.MaxAttempts,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create outbox retention job", err)
			os.Exit(1)
		}
		mustRegister(logg, registry, job)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
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
		"instance":    instance.GetID(),
		"jobs":        registry.Names(),
	})

	if *once || *only != "" {
		var ran bool
		if *only != "" {
			ran, err = service.RunJob(ctx, *only)
		} else {
			ran, err = service.RunOnce(ctx)
		}
		if err != nil {
			logg.Error(ctx, "one-shot run failed", err)
			os.Exit(1)
		}
		if !ran {
			logg.Warn(ctx, "cron lock held by another instance; nothing ran")
		}
		return
	}

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func mustRegister(logg *logger.Logger, registry *cron.Registry, job cron.Job) {
	if err := registry.Register(job); err != nil {
		logg.Error(context.Background(), "failed to register job", err)
		os.Exit(1)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockName, env)
}
