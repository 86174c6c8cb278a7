// Package calc implements the marketplace profit engine: per-platform fee
// schedules, GST reconciliation, break-even search and price simulation.
//
// Selling prices are GST-inclusive; product cost is always GST-exclusive.
// Every function in this package is pure: inputs are never mutated and no
// I/O is performed, so results can be computed concurrently by callers.
package calc

import "github.com/angelmondragon/profitlens/pkg/enums"

// PlatformPricing is a product's per-platform override.
type PlatformPricing struct {
	MRP           float64  `json:"mrp"`
	SellingPrice  float64  `json:"sellingPrice"`
	Settlement    *float64 `json:"settlement,omitempty"`
	ReturnPercent float64  `json:"returnPercent"`
	MonthlyVolume float64  `json:"monthlyVolume"`
}

// Product is a sellable SKU.
type Product struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	SKU             string                     `json:"sku"`
	CostPrice       float64                    `json:"costPrice"`
	GSTPercent      float64                    `json:"gstPercent"`
	Weight          float64                    `json:"weight"`
	MRP             float64                    `json:"mrp"`
	SellingPrice    float64                    `json:"sellingPrice"`
	Notes           string                     `json:"notes,omitempty"`
	PlatformPricing map[string]PlatformPricing `json:"platformPricing"`
}

// Pricing returns the override for platformID, if any.
func (p Product) Pricing(platformID string) (PlatformPricing, bool) {
	if p.PlatformPricing == nil {
		return PlatformPricing{}, false
	}
	pp, ok := p.PlatformPricing[platformID]
	return pp, ok
}

// WithPricing returns a copy of p whose override for platformID is replaced.
// The receiver's map is left untouched.
func (p Product) WithPricing(platformID string, pricing PlatformPricing) Product {
	out := p
	out.PlatformPricing = make(map[string]PlatformPricing, len(p.PlatformPricing)+1)
	for id, pp := range p.PlatformPricing {
		out.PlatformPricing[id] = pp
	}
	out.PlatformPricing[platformID] = pricing
	return out
}

// Platform is a marketplace and its fee configuration.
type Platform struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Type              enums.PlatformType `json:"type"`
	CommissionPercent *float64           `json:"commissionPercent,omitempty"`
	AdsPercent        float64            `json:"adsPercent"`
	FeesExclTax       *bool              `json:"feesExclTax,omitempty"`
}

// Commission returns the configured flat commission, or 0 when unset.
func (p Platform) Commission() float64 {
	if p.CommissionPercent == nil {
		return 0
	}
	return finite(*p.CommissionPercent)
}

// FeesExclusiveOfTax reports whether quoted fees exclude GST.
func (p Platform) FeesExclusiveOfTax() bool {
	return p.FeesExclTax != nil && *p.FeesExclTax
}

// Settings holds the user's alerting preferences.
type Settings struct {
	MinMarginAlert float64 `json:"minMarginAlert"`
	DarkMode       bool    `json:"darkMode"`
}

// FeeBreakdown is the output of a fee schedule.
type FeeBreakdown struct {
	Commission      float64 `json:"commission"`
	CommissionLabel string  `json:"commissionLabel"`
	ClosingFee      float64 `json:"closingFee"`
	ShippingFee     float64 `json:"shippingFee"`
	PickAndPackFee  float64 `json:"pickAndPackFee"`
	Discount        float64 `json:"discount"`
	StorageFee      float64 `json:"storageFee"`
}

// Total returns the platform fees excluding the discount.
func (f FeeBreakdown) Total() float64 {
	return f.Commission + f.ClosingFee + f.ShippingFee + f.PickAndPackFee + f.StorageFee
}

// Result is the full financial breakdown of one product on one platform.
type Result struct {
	PlatformID        string   `json:"platformId"`
	PlatformName      string   `json:"platformName"`
	MRP               float64  `json:"mrp"`
	SellingPrice      float64  `json:"sellingPrice"`
	Settlement        *float64 `json:"settlement,omitempty"`
	Commission        float64  `json:"commission"`
	CommissionLabel   string   `json:"commissionLabel"`
	Discount          float64  `json:"discount"`
	ShippingFee       float64  `json:"shippingFee"`
	StorageFee        float64  `json:"storageFee"`
	ClosingFee        float64  `json:"closingFee"`
	PickAndPackFee    float64  `json:"pickAndPackFee"`
	TotalPlatformFees float64  `json:"totalPlatformFees"`
	NetReceived       float64  `json:"netReceived"`
	ProductCost       float64  `json:"productCost"`
	GSTOutput         float64  `json:"gstOutput"`
	GSTInputOnCost    float64  `json:"gstInputOnCost"`
	GSTInputOnFees    float64  `json:"gstInputOnFees"`
	NetGST            float64  `json:"netGST"`
	AdsCost           float64  `json:"adsCost"`
	ReturnCost        float64  `json:"returnCost"`
	Profit            float64  `json:"profit"`
	ProfitMargin      float64  `json:"profitMargin"`
	MonthlyVolume     float64  `json:"monthlyVolume"`
	MonthlyProfit     float64  `json:"monthlyProfit"`

	// SettlementMissing is set when a fixed-settlement platform had no
	// settlement configured and the formula branch was used instead.
	SettlementMissing bool `json:"settlementMissing,omitempty"`
}
