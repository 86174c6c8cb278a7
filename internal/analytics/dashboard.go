package analytics

import "github.com/angelmondragon/profitlens/internal/calc"

// DashboardSummary holds the headline numbers shown on the landing page.
type DashboardSummary struct {
	Products         int         `json:"products"`
	Platforms        int         `json:"platforms"`
	Alerts           AlertCounts `json:"alerts"`
	MinMarginAlert   float64     `json:"minMarginAlert"`
	GlobalAdsPercent float64     `json:"globalAdsPercent"`
}

// Dashboard counts the catalogue and evaluates alerts for the summary cards.
func Dashboard(products []calc.Product, platforms []calc.Platform, globalAdsPercent float64, settings calc.Settings) DashboardSummary {
	return DashboardSummary{
		Products:         len(products),
		Platforms:        len(platforms),
		Alerts:           CountBySeverity(Alerts(products, platforms, globalAdsPercent, settings)),
		MinMarginAlert:   settings.MinMarginAlert,
		GlobalAdsPercent: globalAdsPercent,
	}
}
