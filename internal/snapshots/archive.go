package snapshots

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/profitlens/internal/csvio"
	"github.com/angelmondragon/profitlens/pkg/money"
)

var archiveHeaders = []string{
	"Snapshot", "Month", "SKU", "Product", "Platform", "Profit", "Margin %", "Volume", "Monthly Profit",
}

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, data []byte) error
	Delete(ctx context.Context, object string) error
}

// GCSArchiver stores each snapshot as a CSV object under
// <prefix>/<month>/<snapshot id>.csv.
type GCSArchiver struct {
	bucket objectStore
	prefix string
}

// NewGCSArchiver binds an archiver to a bucket handle.
func NewGCSArchiver(bucket objectStore, prefix string) (*GCSArchiver, error) {
	if bucket == nil {
		return nil, errors.New("gcs bucket required")
	}
	return &GCSArchiver{bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// ObjectName is where snapshot is archived.
func (a *GCSArchiver) ObjectName(snapshot Snapshot) string {
	return path.Join(a.prefix, snapshot.Month, snapshot.ID+".csv")
}

// Export renders snapshot as CSV and uploads it.
func (a *GCSArchiver) Export(ctx context.Context, snapshot Snapshot) error {
	var buf bytes.Buffer
	if err := csvio.WriteQuoted(&buf, archiveHeaders, ArchiveRows(snapshot)); err != nil {
		return err
	}
	return a.bucket.Upload(ctx, a.ObjectName(snapshot), csvio.ContentType, buf.Bytes())
}

// Remove deletes the archived CSV of snapshot.
func (a *GCSArchiver) Remove(ctx context.Context, snapshot Snapshot) error {
	return a.bucket.Delete(ctx, a.ObjectName(snapshot))
}

// ArchiveRows flattens snapshot into one CSV row per SKU and platform.
func ArchiveRows(snapshot Snapshot) [][]string {
	var rows [][]string
	for _, sku := range snapshot.SKUResults {
		for _, p := range sku.Platforms {
			rows = append(rows, []string{
				snapshot.ID,
				snapshot.Month,
				sku.SKUCode,
				sku.SKUName,
				p.PlatformID,
				money.Fixed(p.Profit, 2),
				money.Fixed(p.Margin, 2),
				money.Plain(p.Volume),
				money.Fixed(p.MonthlyProfit, 2),
			})
		}
	}
	return rows
}

// MultiExporter runs every exporter and joins their errors.
type MultiExporter []Exporter

func (m MultiExporter) Export(ctx context.Context, snapshot Snapshot) error {
	var err error
	for _, exp := range m {
		if exp == nil {
			continue
		}
		err = multierr.Append(err, exp.Export(ctx, snapshot))
	}
	return err
}

// Remove calls every exporter that can remove what it exported.
func (m MultiExporter) Remove(ctx context.Context, snapshot Snapshot) error {
	var err error
	for _, exp := range m {
		if r, ok := exp.(Remover); ok {
			err = multierr.Append(err, r.Remove(ctx, snapshot))
		}
	}
	return err
}
