package snapshots

import (
	"context"
	"errors"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/profitlens/internal/analytics/writer"
	pkgbigquery "github.com/angelmondragon/profitlens/pkg/bigquery"
)

const defaultBatchSize = 500

// ResultRow mirrors the snapshot_results BigQuery schema: one row per SKU
// and platform in a snapshot.
type ResultRow struct {
	SnapshotID        string                `bigquery:"snapshot_id"`
	Month             string                `bigquery:"month"`
	TakenAt           time.Time             `bigquery:"taken_at"`
	GlobalAdsPercent  float64               `bigquery:"global_ads_percent"`
	SKUID             string                `bigquery:"sku_id"`
	SKUName           string                `bigquery:"sku_name"`
	SKUCode           string                `bigquery:"sku_code"`
	PlatformID        string                `bigquery:"platform_id"`
	AdsPercent        float64               `bigquery:"ads_percent"`
	CommissionPercent cbigquery.NullFloat64 `bigquery:"commission_percent"`
	Profit            float64               `bigquery:"profit"`
	Margin            float64               `bigquery:"margin"`
	Volume            float64               `bigquery:"volume"`
	MonthlyProfit     float64               `bigquery:"monthly_profit"`
	PlatformConfig    cbigquery.NullJSON    `bigquery:"platform_config"`
}

// ResultTable declares the snapshot_results table, partitioned by capture day.
func ResultTable(name string) (pkgbigquery.TableSpec, error) {
	return pkgbigquery.InferTable(name, ResultRow{}, "taken_at")
}

// WarehouseConfig controls the BigQuery exporter.
type WarehouseConfig struct {
	Table       string
	BatchSize   int
	RetryPolicy writer.RetryPolicy
}

// BigQueryExporter writes snapshot rows to BigQuery with retries.
type BigQueryExporter struct {
	inserter  *writer.RetryingInserter
	table     string
	batchSize int
}

// NewBigQueryExporter creates an exporter backed by a shared client.
func NewBigQueryExporter(client *pkgbigquery.Client, cfg WarehouseConfig) (*BigQueryExporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("snapshot table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &BigQueryExporter{
		inserter:  writer.NewRetryingInserter(client, cfg.RetryPolicy),
		table:     table,
		batchSize: batchSize,
	}, nil
}

// Export inserts every SKU and platform pair of snapshot in batches.
func (w *BigQueryExporter) Export(ctx context.Context, snapshot Snapshot) error {
	rows, err := ResultRows(snapshot)
	if err != nil {
		return err
	}
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, writer.KeyedRow(&rows[i], rows[i].insertID()))
		}
		if err := w.inserter.InsertRows(ctx, w.table, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResultRow) insertID() string {
	return r.SnapshotID + "/" + r.PlatformID + "/" + r.SKUID
}

// ResultRows flattens snapshot into warehouse rows.
func ResultRows(snapshot Snapshot) ([]ResultRow, error) {
	var rows []ResultRow
	for _, sku := range snapshot.SKUResults {
		for _, p := range sku.Platforms {
			row := ResultRow{
				SnapshotID:       snapshot.ID,
				Month:            snapshot.Month,
				TakenAt:          snapshot.Date.UTC(),
				GlobalAdsPercent: snapshot.GlobalAdsPercent,
				SKUID:            sku.SKUID,
				SKUName:          sku.SKUName,
				SKUCode:          sku.SKUCode,
				PlatformID:       p.PlatformID,
				Profit:           p.Profit,
				Margin:           p.Margin,
				Volume:           p.Volume,
				MonthlyProfit:    p.MonthlyProfit,
			}
			if cfg, ok := snapshot.PlatformData[p.PlatformID]; ok {
				row.AdsPercent = cfg.AdsPercent
				if cfg.CommissionPercent != nil {
					row.CommissionPercent = cbigquery.NullFloat64{Float64: *cfg.CommissionPercent, Valid: true}
				}
				encoded, err := writer.EncodeJSON(cfg)
				if err != nil {
					return nil, err
				}
				row.PlatformConfig = encoded
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
