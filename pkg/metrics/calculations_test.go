package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCalculationMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCalculationMetrics(reg)
	m.ObserveCalculation("heatmap", 30, 5*time.Millisecond)
	m.ObserveCalculation("heatmap", 10, time.Millisecond)
	m.SetAlerts("loss", 4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "calculation_pairs_total", "operation", "heatmap"); err != nil {
		t.Fatalf("fetch pairs: %v", err)
	} else if got != 40 {
		t.Fatalf("expected pairs=40, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "calculation_duration_seconds", "operation", "heatmap"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	mf := findMetricFamily(mfs, "margin_alerts")
	if mf == nil || len(mf.GetMetric()) != 1 || mf.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected margin_alerts gauge of 4, got %v", mf)
	}
}

func TestSyncMetricsOutcomeLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSyncMetrics(reg)
	m.IncRun("push", nil)
	m.IncRun("push", errors.New("quota"))
	m.AddRows("push", "SKUs", 12)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "sheets_sync_runs_total")
	if mf == nil || len(mf.GetMetric()) != 2 {
		t.Fatalf("expected success and failure series, got %v", mf)
	}
	if got, err := fetchCounterValue(mfs, "sheets_sync_rows_total", "tab", "SKUs"); err != nil {
		t.Fatalf("fetch rows: %v", err)
	} else if got != 12 {
		t.Fatalf("expected rows=12, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var calc *CalculationMetrics
	calc.ObserveCalculation("x", 1, time.Second)
	calc.SetAlerts("low", 1)
	NewCalculationMetrics(nil).ObserveCalculation("x", 1, time.Second)

	var sync *SyncMetrics
	sync.IncRun("pull", nil)
	NewSyncMetrics(nil).AddRows("pull", "SKUs", 1)
}

func TestHTTPMetricsCountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("GET", "/api/v1/products", 200, time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "http_requests_total", "route", "unmatched"); err != nil {
		t.Fatalf("fetch unmatched: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unmatched=1, got %f", got)
	}
}
