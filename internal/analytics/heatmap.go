package analytics

import (
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/enums"
)

// MetricValue extracts metric from a result. Unknown metrics read profit.
func MetricValue(res calc.Result, metric enums.HeatmapMetric) float64 {
	switch metric {
	case enums.HeatmapMetricMargin:
		return res.ProfitMargin
	case enums.HeatmapMetricMonthlyProfit:
		return res.MonthlyProfit
	default:
		return res.Profit
	}
}

// Band classifies value for metric. Margins use percentage thresholds;
// money metrics use rupee thresholds and have a neutral band at exactly 0.
func Band(value float64, metric enums.HeatmapMetric) enums.HeatBand {
	if metric == enums.HeatmapMetricMargin {
		switch {
		case value >= 30:
			return enums.HeatBandHigh
		case value >= 20:
			return enums.HeatBandStrong
		case value >= 10:
			return enums.HeatBandGood
		case value >= 0:
			return enums.HeatBandLow
		case value >= -10:
			return enums.HeatBandNegative
		default:
			return enums.HeatBandLoss
		}
	}
	switch {
	case value > 100:
		return enums.HeatBandHigh
	case value > 50:
		return enums.HeatBandStrong
	case value > 0:
		return enums.HeatBandGood
	case value == 0:
		return enums.HeatBandNeutral
	case value > -50:
		return enums.HeatBandNegative
	default:
		return enums.HeatBandLoss
	}
}

// HeatmapCell is one product on one platform.
type HeatmapCell struct {
	PlatformID string         `json:"platformId"`
	Value      float64        `json:"value"`
	Band       enums.HeatBand `json:"band"`
	Best       bool           `json:"best"`
	Result     calc.Result    `json:"result"`
}

// HeatmapRow holds a product's cells in platform order.
type HeatmapRow struct {
	ProductID      string        `json:"productId"`
	ProductName    string        `json:"productName"`
	SKU            string        `json:"sku"`
	BestPlatformID string        `json:"bestPlatformId,omitempty"`
	Cells          []HeatmapCell `json:"cells"`
}

// PlatformHeader describes a heatmap column.
type PlatformHeader struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Heatmap is the product by platform grid for one metric.
type Heatmap struct {
	Metric    enums.HeatmapMetric `json:"metric"`
	Platforms []PlatformHeader    `json:"platforms"`
	Rows      []HeatmapRow        `json:"rows"`
}

// BuildHeatmap evaluates every pair. The best platform of a row is the one
// with the highest per-unit profit whatever metric is displayed.
func BuildHeatmap(products []calc.Product, platforms []calc.Platform, globalAdsPercent float64, metric enums.HeatmapMetric) Heatmap {
	hm := Heatmap{
		Metric:    metric,
		Platforms: make([]PlatformHeader, 0, len(platforms)),
		Rows:      make([]HeatmapRow, 0, len(products)),
	}
	for _, p := range platforms {
		hm.Platforms = append(hm.Platforms, PlatformHeader{ID: p.ID, Name: p.Name})
	}

	for _, product := range products {
		results := calc.ComputeAllResults(product, platforms, globalAdsPercent)
		row := HeatmapRow{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Cells:       make([]HeatmapCell, 0, len(results)),
		}
		if rec := Recommend(product, results); rec.Best != nil {
			row.BestPlatformID = rec.Best.PlatformID
		}
		for _, res := range results {
			value := MetricValue(res, metric)
			row.Cells = append(row.Cells, HeatmapCell{
				PlatformID: res.PlatformID,
				Value:      value,
				Band:       Band(value, metric),
				Best:       res.PlatformID == row.BestPlatformID,
				Result:     res,
			})
		}
		hm.Rows = append(hm.Rows, row)
	}
	return hm
}

// PlatformSummary is a heatmap column footer.
type PlatformSummary struct {
	PlatformID    string  `json:"platformId"`
	PlatformName  string  `json:"platformName"`
	AverageProfit float64 `json:"averageProfit"`
	Profitable    int     `json:"profitable"`
	Total         int     `json:"total"`
}

// PlatformSummaries averages per-unit profit down each heatmap column and
// counts the products that make money there.
func PlatformSummaries(hm Heatmap) []PlatformSummary {
	out := make([]PlatformSummary, 0, len(hm.Platforms))
	for i, header := range hm.Platforms {
		sum := PlatformSummary{PlatformID: header.ID, PlatformName: header.Name}
		var total float64
		for _, row := range hm.Rows {
			if i >= len(row.Cells) {
				continue
			}
			profit := row.Cells[i].Result.Profit
			total += profit
			sum.Total++
			if profit > 0 {
				sum.Profitable++
			}
		}
		if sum.Total > 0 {
			sum.AverageProfit = total / float64(sum.Total)
		}
		out = append(out, sum)
	}
	return out
}
