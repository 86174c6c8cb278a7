// Package analytics derives portfolio views from profit results: margin
// alerts, best and worst platforms, heatmaps and per-marketplace rollups.
package analytics

import (
	"sort"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/enums"
)

// Alert flags a product and platform pair whose margin is under the threshold.
type Alert struct {
	ProductID    string              `json:"productId"`
	ProductName  string              `json:"productName"`
	SKU          string              `json:"sku"`
	PlatformID   string              `json:"platformId"`
	PlatformName string              `json:"platformName"`
	Severity     enums.AlertSeverity `json:"severity"`
	Result       calc.Result         `json:"result"`
}

// Alerts evaluates every pair and keeps those with a margin strictly below
// settings.MinMarginAlert, worst margin first. Pairs with equal margins keep
// product then platform order.
func Alerts(products []calc.Product, platforms []calc.Platform, globalAdsPercent float64, settings calc.Settings) []Alert {
	var alerts []Alert
	for _, product := range products {
		for _, res := range calc.ComputeAllResults(product, platforms, globalAdsPercent) {
			if res.ProfitMargin >= settings.MinMarginAlert {
				continue
			}
			severity := enums.AlertSeverityLow
			if res.Profit < 0 {
				severity = enums.AlertSeverityLoss
			}
			alerts = append(alerts, Alert{
				ProductID:    product.ID,
				ProductName:  product.Name,
				SKU:          product.SKU,
				PlatformID:   res.PlatformID,
				PlatformName: res.PlatformName,
				Severity:     severity,
				Result:       res,
			})
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Result.ProfitMargin < alerts[j].Result.ProfitMargin
	})
	return alerts
}

// FilterAlerts keeps alerts matching platformID and severity. Empty values
// match everything.
func FilterAlerts(alerts []Alert, platformID string, severity enums.AlertSeverity) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if platformID != "" && a.PlatformID != platformID {
			continue
		}
		if severity != "" && a.Severity != severity {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AlertCounts tallies alerts by severity.
type AlertCounts struct {
	Total int `json:"total"`
	Loss  int `json:"loss"`
	Low   int `json:"low"`
}

// CountBySeverity counts alerts per severity.
func CountBySeverity(alerts []Alert) AlertCounts {
	counts := AlertCounts{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case enums.AlertSeverityLoss:
			counts.Loss++
		case enums.AlertSeverityLow:
			counts.Low++
		}
	}
	return counts
}
