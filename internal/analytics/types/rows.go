package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	pkgbigquery "github.com/angelmondragon/profitlens/pkg/bigquery"
)

// FeeChangeTable declares the fee_changes table, partitioned by change day.
func FeeChangeTable(name string) (pkgbigquery.TableSpec, error) {
	return pkgbigquery.InferTable(name, FeeChangeRow{}, "changed_at")
}

// FeeChangeRow mirrors the fee_changes BigQuery schema.
type FeeChangeRow struct {
	EventID      string             `bigquery:"event_id"`
	PlatformID   string             `bigquery:"platform_id"`
	PlatformName string             `bigquery:"platform_name"`
	Field        string             `bigquery:"field"`
	OldValue     float64            `bigquery:"old_value"`
	NewValue     float64            `bigquery:"new_value"`
	ChangedAt    time.Time          `bigquery:"changed_at"`
	Payload      cbigquery.NullJSON `bigquery:"payload"`
}
