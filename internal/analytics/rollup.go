package analytics

import (
	"sort"
	"strings"

	"github.com/angelmondragon/profitlens/internal/calc"
)

// RollupLine is one product's result on the rolled up platform.
type RollupLine struct {
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	SKU         string      `json:"sku"`
	Result      calc.Result `json:"result"`
}

// RollupTotals sums the rollup columns.
type RollupTotals struct {
	Fees          float64 `json:"fees"`
	NetReceived   float64 `json:"netReceived"`
	NetGST        float64 `json:"netGST"`
	AdsCost       float64 `json:"adsCost"`
	Profit        float64 `json:"profit"`
	AverageMargin float64 `json:"averageMargin"`
	Profitable    int     `json:"profitable"`
	Count         int     `json:"count"`
}

// MarketplaceRollup is every product evaluated on one platform.
type MarketplaceRollup struct {
	PlatformID   string       `json:"platformId"`
	PlatformName string       `json:"platformName"`
	Lines        []RollupLine `json:"lines"`
	Totals       RollupTotals `json:"totals"`
}

// Rollup evaluates products on platform, keeps those whose name or SKU
// contains query (case-insensitive, blank matches all) and orders them by
// profit, highest first. Fees include the MRP discount.
func Rollup(products []calc.Product, platform calc.Platform, globalAdsPercent float64, query string) MarketplaceRollup {
	q := strings.ToLower(strings.TrimSpace(query))
	out := MarketplaceRollup{
		PlatformID:   platform.ID,
		PlatformName: platform.Name,
		Lines:        make([]RollupLine, 0, len(products)),
	}
	for _, product := range products {
		if q != "" && !strings.Contains(strings.ToLower(product.Name), q) && !strings.Contains(strings.ToLower(product.SKU), q) {
			continue
		}
		out.Lines = append(out.Lines, RollupLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			SKU:         product.SKU,
			Result:      calc.ComputeResult(product, platform, globalAdsPercent),
		})
	}
	sort.SliceStable(out.Lines, func(i, j int) bool {
		return out.Lines[i].Result.Profit > out.Lines[j].Result.Profit
	})

	t := &out.Totals
	var margins float64
	for _, line := range out.Lines {
		r := line.Result
		t.Fees += r.TotalPlatformFees + r.Discount
		t.NetReceived += r.NetReceived
		t.NetGST += r.NetGST
		t.AdsCost += r.AdsCost
		t.Profit += r.Profit
		margins += r.ProfitMargin
		if r.Profit > 0 {
			t.Profitable++
		}
	}
	t.Count = len(out.Lines)
	if t.Count > 0 {
		t.AverageMargin = margins / float64(t.Count)
	}
	return out
}
