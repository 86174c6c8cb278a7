package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/profitlens/internal/analytics/router"
	analyticstypes "github.com/angelmondragon/profitlens/internal/analytics/types"
	"github.com/angelmondragon/profitlens/internal/analytics/worker"
	"github.com/angelmondragon/profitlens/internal/analytics/writer"
	"github.com/angelmondragon/profitlens/pkg/bigquery"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/idempotency"
	"github.com/angelmondragon/profitlens/pkg/instance"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/pubsub"
	"github.com/angelmondragon/profitlens/pkg/redis"
)

// The analytics worker copies fee change events from Pub/Sub into the
// BigQuery fee_changes table.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "analytics-worker"

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if !cfg.PubSub.Enabled() || !cfg.BigQuery.Enabled {
		requireResource(ctx, logg, "warehouse", errors.New("pubsub and bigquery must both be enabled"))
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	feeTable, err := analyticstypes.FeeChangeTable(cfg.BigQuery.FeeChangeTable)
	requireResource(ctx, logg, "fee change table schema", err)
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, feeTable)
	requireResource(ctx, logg, "bigquery client", err)
	defer func() {
		if err := bqClient.Close(); err != nil {
			logg.Error(ctx, "failed to close bigquery client", err)
		}
	}()

	subscription := pubsubClient.FeeChangeSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "fee change subscription", errors.New("subscription not configured"))
	}
	if cfg.PubSub.MaxOutstanding > 0 {
		subscription.ReceiveSettings.MaxOutstandingMessages = cfg.PubSub.MaxOutstanding
	}

	manager, err := idempotency.NewManager(redisClient, cfg.PubSub.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	feeWriter, err := writer.New(bqClient, writer.Config{FeeChangeTable: cfg.BigQuery.FeeChangeTable})
	requireResource(ctx, logg, "fee change bigquery writer", err)

	routingHandler, err := router.NewRouter(feeWriter, logg, nil)
	requireResource(ctx, logg, "fee change router", err)

	service, err := worker.NewService(subscription, routingHandler, manager, logg)
	requireResource(ctx, logg, "warehouse worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "analytics worker ready")

	err = service.Run(runCtx)
	if flushErr := feeWriter.Flush(context.Background()); flushErr != nil {
		logg.Error(ctx, "failed to flush buffered fee changes", flushErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
