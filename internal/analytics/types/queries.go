package types

// TrendRequest selects warehouse snapshot rows by month range. Months are
// YYYY-MM and both ends are inclusive. A blank PlatformID covers every platform.
type TrendRequest struct {
	PlatformID string
	From       string
	To         string
	TopN       int
}

// TrendPoint is one platform in one snapshot month.
type TrendPoint struct {
	Month         string  `json:"month"`
	PlatformID    string  `json:"platformId"`
	MonthlyProfit float64 `json:"monthlyProfit"`
	AverageMargin float64 `json:"averageMargin"`
	SKUs          int64   `json:"skus"`
}

// LabelValue is a top-N entry such as a SKU.
type LabelValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TrendReport is the month over month view built from snapshot exports.
type TrendReport struct {
	From    string       `json:"from"`
	To      string       `json:"to"`
	Points  []TrendPoint `json:"points"`
	TopSKUs []LabelValue `json:"topSkus"`
}
