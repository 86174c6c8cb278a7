package enums

import "fmt"

// HeatmapMetric selects which result value a heatmap cell displays.
type HeatmapMetric string

const (
	HeatmapMetricProfit        HeatmapMetric = "profit"
	HeatmapMetricMargin        HeatmapMetric = "margin"
	HeatmapMetricMonthlyProfit HeatmapMetric = "monthlyProfit"
)

var validHeatmapMetrics = []HeatmapMetric{
	HeatmapMetricProfit,
	HeatmapMetricMargin,
	HeatmapMetricMonthlyProfit,
}

// IsValid reports whether the value is a known HeatmapMetric.
func (m HeatmapMetric) IsValid() bool {
	for _, candidate := range validHeatmapMetrics {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseHeatmapMetric converts raw input into a HeatmapMetric.
func ParseHeatmapMetric(value string) (HeatmapMetric, error) {
	for _, candidate := range validHeatmapMetrics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid heatmap metric %q", value)
}

// HeatBand is the coarse health class of a heatmap cell, best first.
type HeatBand string

const (
	HeatBandHigh     HeatBand = "high"
	HeatBandStrong   HeatBand = "strong"
	HeatBandGood     HeatBand = "good"
	HeatBandNeutral  HeatBand = "neutral"
	HeatBandLow      HeatBand = "low"
	HeatBandNegative HeatBand = "negative"
	HeatBandLoss     HeatBand = "loss"
)
