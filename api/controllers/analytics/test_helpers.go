package analytics

import (
	"context"

	"github.com/angelmondragon/profitlens/internal/analytics"
	"github.com/angelmondragon/profitlens/pkg/enums"
)

type testAnalyticsService struct {
	calls      int
	platformID string
	query      string
	severity   enums.AlertSeverity
	metric     enums.HeatmapMetric
	err        error
}

func (s *testAnalyticsService) Alerts(_ context.Context, platformID string, severity enums.AlertSeverity) (analytics.AlertReport, error) {
	s.calls++
	s.platformID, s.severity = platformID, severity
	return analytics.AlertReport{Threshold: 15}, s.err
}

func (s *testAnalyticsService) Heatmap(_ context.Context, metric enums.HeatmapMetric) (analytics.HeatmapReport, error) {
	s.calls++
	s.metric = metric
	report := analytics.HeatmapReport{}
	report.Metric = metric
	return report, s.err
}

func (s *testAnalyticsService) Marketplace(_ context.Context, platformID, query string) (analytics.MarketplaceRollup, error) {
	s.calls++
	s.platformID, s.query = platformID, query
	return analytics.MarketplaceRollup{PlatformID: platformID}, s.err
}

func (s *testAnalyticsService) Recommendations(context.Context) ([]analytics.Recommendation, error) {
	s.calls++
	return []analytics.Recommendation{}, s.err
}

func (s *testAnalyticsService) Dashboard(context.Context) (analytics.DashboardSummary, error) {
	s.calls++
	return analytics.DashboardSummary{Products: 3}, s.err
}

func (s *testAnalyticsService) called() bool {
	return s.calls > 0
}
