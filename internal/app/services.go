// Package app assembles the domain services shared by the API and the cron worker.
package app

import (
	"fmt"

	"github.com/angelmondragon/profitlens/internal/analytics"
	"github.com/angelmondragon/profitlens/internal/analytics/query"
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/internal/platforms"
	"github.com/angelmondragon/profitlens/internal/pricing"
	"github.com/angelmondragon/profitlens/internal/products"
	"github.com/angelmondragon/profitlens/internal/settings"
	"github.com/angelmondragon/profitlens/internal/sheetsync"
	"github.com/angelmondragon/profitlens/internal/snapshots"
	"github.com/angelmondragon/profitlens/internal/workspace"
	"github.com/angelmondragon/profitlens/pkg/bigquery"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/metrics"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/angelmondragon/profitlens/pkg/sheets"
	"github.com/angelmondragon/profitlens/pkg/storage/gcs"
	"gorm.io/gorm"
)

// Services groups the domain services. Sync is nil when no spreadsheet is
// configured and Trends is nil when BigQuery is disabled.
type Services struct {
	Products  products.Service
	Platforms platforms.Service
	Settings  settings.Service
	Pricing   pricing.Service
	Analytics analytics.Service
	ChangeLog changelog.Service
	Snapshots snapshots.Service
	Sync      sheetsync.Service
	Trends    query.TrendService
}

// Params carries the clients the services are built on. Only DB and Config
// are required.
type Params struct {
	Config      *config.Config
	DB          *db.Client
	Logger      *logger.Logger
	BigQuery    *bigquery.Client
	Sheets      *sheets.Client
	GCS         *gcs.Client
	CalcMetrics *metrics.CalculationMetrics
	SyncMetrics *metrics.SyncMetrics
}

// Build wires every service over the shared database client.
func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	cfg := p.Config
	conn := p.DB.DB()

	// Fee change events are queued on the outbox only when a topic exists
	// for the publisher to relay them to.
	var events changelog.EventQueue
	if cfg.PubSub.Enabled() {
		events = outbox.NewService(outbox.NewRepository(conn), p.Logger)
	}
	changes, err := changelog.NewService(changelog.ServiceParams{
		Repo:   changelog.NewRepository(conn, events),
		Tx:     changelog.NewTxRunner(p.DB, events),
		Logger: p.Logger,
		Limit:  cfg.Calc.ChangeLogLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("changelog service: %w", err)
	}

	productSvc, err := products.NewService(products.NewRepository(conn), products.NewTxRunner(p.DB))
	if err != nil {
		return nil, fmt.Errorf("products service: %w", err)
	}

	defaults := calc.DefaultPlatforms
	if !cfg.FeatureFlags.SeedDefault {
		defaults = func() []calc.Platform { return nil }
	}
	// Platform edits and their fee change entries commit together.
	changesOn := func(tx *gorm.DB) platforms.ChangeRecorder {
		return changelog.Bind(tx, events, cfg.Calc.ChangeLogLimit, p.Logger)
	}
	platformSvc, err := platforms.NewService(platforms.ServiceParams{
		Repo:     platforms.NewRepository(conn),
		Tx:       platforms.NewTxRunner(p.DB, changesOn),
		Changes:  changes,
		Logger:   p.Logger,
		Defaults: defaults,
	})
	if err != nil {
		return nil, fmt.Errorf("platforms service: %w", err)
	}

	settingsSvc, err := settings.NewService(
		settings.NewRepository(conn),
		settings.Defaults(cfg.Calc.DefaultMinMarginAlert, cfg.Calc.DefaultGlobalAdsPercent),
	)
	if err != nil {
		return nil, fmt.Errorf("settings service: %w", err)
	}

	loader, err := workspace.NewLoader(productSvc, platformSvc, settingsSvc)
	if err != nil {
		return nil, fmt.Errorf("workspace loader: %w", err)
	}

	pricingSvc, err := pricing.NewService(pricing.ServiceParams{
		Inputs:  loader,
		Metrics: p.CalcMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("pricing service: %w", err)
	}

	analyticsSvc, err := analytics.NewService(analytics.ServiceParams{
		Inputs:  loader,
		Metrics: p.CalcMetrics,
		Logger:  p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("analytics service: %w", err)
	}

	var exporters snapshots.MultiExporter
	if p.BigQuery != nil && cfg.BigQuery.Enabled {
		bq, err := snapshots.NewBigQueryExporter(p.BigQuery, snapshots.WarehouseConfig{Table: cfg.BigQuery.SnapshotTable})
		if err != nil {
			return nil, fmt.Errorf("snapshot exporter: %w", err)
		}
		exporters = append(exporters, bq)
	}
	if p.GCS != nil {
		archiver, err := snapshots.NewGCSArchiver(p.GCS.BucketHandle(""), cfg.GCS.ArchivePrefix)
		if err != nil {
			return nil, fmt.Errorf("snapshot archiver: %w", err)
		}
		exporters = append(exporters, archiver)
	}
	var exporter snapshots.Exporter
	if len(exporters) > 0 {
		exporter = exporters
	}
	var trends query.TrendService
	if p.BigQuery != nil && cfg.BigQuery.Enabled {
		trends, err = query.NewTrendService(p.BigQuery, cfg.GCP.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.SnapshotTable)
		if err != nil {
			return nil, fmt.Errorf("trend service: %w", err)
		}
	}
	snapshotSvc, err := snapshots.NewService(snapshots.ServiceParams{
		Repo:     snapshots.NewRepository(conn),
		Tx:       snapshots.NewTxRunner(p.DB),
		Inputs:   loader,
		Exporter: exporter,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshots service: %w", err)
	}

	out := &Services{
		Products:  productSvc,
		Platforms: platformSvc,
		Settings:  settingsSvc,
		Pricing:   pricingSvc,
		Analytics: analyticsSvc,
		ChangeLog: changes,
		Snapshots: snapshotSvc,
		Trends:    trends,
	}

	if p.Sheets != nil {
		syncSvc, err := sheetsync.NewService(sheetsync.ServiceParams{
			Sheets:    p.Sheets,
			Products:  productSvc,
			Platforms: platformSvc,
			Settings:  settingsSvc,
			ChangeLog: changes,
			Snapshots: snapshotSvc,
			Metrics:   p.SyncMetrics,
			Logger:    p.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("sheets sync service: %w", err)
		}
		out.Sync = syncSvc
	}
	return out, nil
}
