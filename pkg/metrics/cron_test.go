package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1772323200, 0) }

	m.ObserveRun("monthly-snapshot", 250*time.Millisecond, nil)
	m.ObserveRun("monthly-snapshot", time.Second, errors.New("bigquery down"))
	m.ObserveRun("", time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	if runs == nil || len(runs.GetMetric()) != 3 {
		t.Fatalf("expected three run series, got %v", runs)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "monthly-snapshot"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f", got)
	}
	if _, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "unknown"); err != nil {
		t.Fatalf("blank job should be labelled unknown: %v", err)
	}

	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if last == nil {
		t.Fatal("expected last success gauge")
	}
	for _, metric := range last.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "monthly-snapshot") && metric.GetGauge().GetValue() != 1772323200 {
			t.Fatalf("unexpected last success %f", metric.GetGauge().GetValue())
		}
	}
}

func TestJobMetricsNilIsNoop(t *testing.T) {
	var m *JobMetrics
	m.ObserveRun("x", time.Second, nil)
	NewJobMetrics(nil).ObserveRun("x", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
