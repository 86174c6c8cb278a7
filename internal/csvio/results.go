package csvio

import (
	"io"
	"sort"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/money"
)

// ResultHeaders are the columns of a results export.
var ResultHeaders = []string{
	"Platform", "SP", "MRP", "Commission", "Platform Fees", "Net Received",
	"GST Output", "GST Input", "Net GST", "Product Cost", "Ads", "Returns",
	"Profit", "Margin %", "Monthly Vol", "Monthly Profit",
}

// ResultRows renders results most profitable first. Money columns carry two
// decimals, margin one; prices and volume are written as entered.
func ResultRows(results []calc.Result) [][]string {
	sorted := make([]calc.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Profit > sorted[j].Profit })

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{
			r.PlatformName,
			money.Plain(r.SellingPrice),
			money.Plain(r.MRP),
			money.Fixed(r.Commission, 2),
			money.Fixed(r.TotalPlatformFees, 2),
			money.Fixed(r.NetReceived, 2),
			money.Fixed(r.GSTOutput, 2),
			money.Fixed(r.GSTInputOnCost+r.GSTInputOnFees, 2),
			money.Fixed(r.NetGST, 2),
			money.Plain(r.ProductCost),
			money.Fixed(r.AdsCost, 2),
			money.Fixed(r.ReturnCost, 2),
			money.Fixed(r.Profit, 2),
			money.Fixed(r.ProfitMargin, 1),
			money.Plain(r.MonthlyVolume),
			money.Fixed(r.MonthlyProfit, 2),
		})
	}
	return rows
}

// ExportResults writes a results export to w.
func ExportResults(w io.Writer, results []calc.Result) error {
	return WriteQuoted(w, ResultHeaders, ResultRows(results))
}

// ResultsFilename names a results export after the SKU code.
func ResultsFilename(sku string) string {
	if sku == "" {
		sku = "export"
	}
	return "profitlens-" + sku + "-profit.csv"
}
