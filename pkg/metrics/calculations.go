package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CalculationMetrics records profit engine workloads served by the API.
type CalculationMetrics struct {
	pairs    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	alerts   *prometheus.GaugeVec
}

// NewCalculationMetrics registers the calculation metrics on the provided registerer.
func NewCalculationMetrics(reg prometheus.Registerer) *CalculationMetrics {
	if reg == nil {
		return &CalculationMetrics{}
	}
	pairs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calculation_pairs_total",
		Help: "Product and platform pairs evaluated, by operation.",
	}, []string{"operation"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calculation_duration_seconds",
		Help:    "Duration of calculation operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	alerts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "margin_alerts",
		Help: "Margin alerts found by the latest evaluation, by severity.",
	}, []string{"severity"})
	reg.MustRegister(pairs, duration, alerts)
	return &CalculationMetrics{
		pairs:    pairs,
		duration: duration,
		alerts:   alerts,
	}
}

// ObserveCalculation records pairs evaluated by operation and how long it took.
func (c *CalculationMetrics) ObserveCalculation(operation string, pairs int, took time.Duration) {
	if c == nil || c.pairs == nil {
		return
	}
	op := normalizeLabel(operation)
	c.pairs.WithLabelValues(op).Add(float64(pairs))
	c.duration.WithLabelValues(op).Observe(took.Seconds())
}

// SetAlerts publishes the current alert count for severity.
func (c *CalculationMetrics) SetAlerts(severity string, count int) {
	if c == nil || c.alerts == nil {
		return
	}
	c.alerts.WithLabelValues(normalizeLabel(severity)).Set(float64(count))
}

// SyncMetrics records spreadsheet synchronisation runs.
type SyncMetrics struct {
	runs *prometheus.CounterVec
	rows *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheets_sync_runs_total",
		Help: "Spreadsheet sync runs, by direction and outcome.",
	}, []string{"direction", "outcome"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheets_sync_rows_total",
		Help: "Rows moved by spreadsheet sync, by direction and tab.",
	}, []string{"direction", "tab"})
	reg.MustRegister(runs, rows)
	return &SyncMetrics{runs: runs, rows: rows}
}

// IncRun counts one sync run.
func (s *SyncMetrics) IncRun(direction string, err error) {
	if s == nil || s.runs == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.runs.WithLabelValues(normalizeLabel(direction), outcome).Inc()
}

// AddRows counts rows moved for tab.
func (s *SyncMetrics) AddRows(direction, tab string, n int) {
	if s == nil || s.rows == nil {
		return
	}
	s.rows.WithLabelValues(normalizeLabel(direction), normalizeLabel(tab)).Add(float64(n))
}
