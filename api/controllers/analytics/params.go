package analytics

import (
	"net/http"

	"github.com/angelmondragon/profitlens/api/validators"
	"github.com/angelmondragon/profitlens/pkg/enums"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
)

const maxQueryLen = 128

func parseSeverity(r *http.Request) (enums.AlertSeverity, error) {
	raw := validators.QueryString(r, "severity", maxQueryLen)
	if raw == "" || raw == "all" {
		return "", nil
	}
	severity, err := enums.ParseAlertSeverity(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid severity").
			WithDetails(map[string]any{"field": "severity"})
	}
	return severity, nil
}

func parseMetric(r *http.Request) (enums.HeatmapMetric, error) {
	raw := validators.QueryString(r, "metric", maxQueryLen)
	if raw == "" {
		return enums.HeatmapMetricProfit, nil
	}
	metric, err := enums.ParseHeatmapMetric(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid heatmap metric").
			WithDetails(map[string]any{"field": "metric"})
	}
	return metric, nil
}

// platformFilter treats "all" like an absent filter.
func platformFilter(r *http.Request) string {
	raw := validators.QueryString(r, "platform", maxQueryLen)
	if raw == "all" {
		return ""
	}
	return raw
}
