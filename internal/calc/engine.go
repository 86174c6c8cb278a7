package calc

import (
	"math"

	"github.com/angelmondragon/profitlens/pkg/enums"
)

const commissionLabelFixedSettlement = "Fixed Settlement"

type inputs struct {
	mrp           float64
	sp            float64
	settlement    *float64
	returnPercent float64
	monthlyVolume float64
	adsPercent    float64
	gstRate       float64
	productCost   float64
}

// resolveInputs picks the effective per-platform values. A zero override
// price falls back to the product default; a settlement pointer is kept
// as-is so an explicit 0 still counts as configured.
func resolveInputs(product Product, platform Platform, globalAdsPercent float64) inputs {
	pp, _ := product.Pricing(platform.ID)

	in := inputs{
		mrp:           orElse(pp.MRP, product.MRP),
		sp:            orElse(pp.SellingPrice, product.SellingPrice),
		returnPercent: finite(pp.ReturnPercent),
		monthlyVolume: finite(pp.MonthlyVolume),
		adsPercent:    orElse(platform.AdsPercent, globalAdsPercent),
		gstRate:       finite(product.GSTPercent) / 100,
		productCost:   finite(product.CostPrice),
	}
	if pp.Settlement != nil {
		s := finite(*pp.Settlement)
		in.settlement = &s
	}
	return in
}

// ComputeResult evaluates product on platform. It never fails: missing or
// non-finite numbers are treated as zero.
func ComputeResult(product Product, platform Platform, globalAdsPercent float64) Result {
	in := resolveInputs(product, platform, globalAdsPercent)

	res := Result{
		PlatformID:    platform.ID,
		PlatformName:  platform.Name,
		MRP:           in.mrp,
		SellingPrice:  in.sp,
		Settlement:    in.settlement,
		ProductCost:   in.productCost,
		MonthlyVolume: in.monthlyVolume,
	}

	if platform.Type == enums.PlatformTypeFixedSettlement && in.settlement != nil {
		fixedSettlement(&res, in)
	} else {
		res.SettlementMissing = platform.Type == enums.PlatformTypeFixedSettlement
		formula(&res, in, platform)
	}

	res.MonthlyProfit = res.Profit * in.monthlyVolume
	return res
}

func fixedSettlement(res *Result, in inputs) {
	s := *in.settlement

	res.CommissionLabel = commissionLabelFixedSettlement
	res.NetReceived = s
	res.GSTOutput = s * in.gstRate / (1 + in.gstRate)
	res.NetGST = res.GSTOutput
	res.AdsCost = s * in.adsPercent / 100
	res.ReturnCost = s * in.returnPercent / 100
	res.Profit = s - res.GSTOutput - in.productCost - res.AdsCost - res.ReturnCost
	res.ProfitMargin = percentOf(res.Profit, s)
}

func formula(res *Result, in inputs, platform Platform) {
	fees := FeesFor(platform, in.sp, in.mrp)
	total := fees.Total()

	res.Commission = fees.Commission
	res.CommissionLabel = fees.CommissionLabel
	res.Discount = fees.Discount
	res.ShippingFee = fees.ShippingFee
	res.StorageFee = fees.StorageFee
	res.ClosingFee = fees.ClosingFee
	res.PickAndPackFee = fees.PickAndPackFee
	res.TotalPlatformFees = total

	res.GSTOutput = in.sp * in.gstRate / (1 + in.gstRate)
	if platform.FeesExclusiveOfTax() {
		res.GSTInputOnFees = total * in.gstRate
		res.NetReceived = in.sp - total - total*in.gstRate - fees.Discount
	} else {
		res.GSTInputOnFees = (total + fees.Discount) * in.gstRate / (1 + in.gstRate)
		res.NetReceived = in.sp - total - fees.Discount
	}

	res.NetGST = res.GSTOutput - res.GSTInputOnFees
	res.AdsCost = in.sp * in.adsPercent / 100
	res.ReturnCost = res.NetReceived * in.returnPercent / 100
	res.Profit = res.NetReceived - in.productCost - res.NetGST - res.AdsCost - res.ReturnCost
	res.ProfitMargin = percentOf(res.Profit, in.sp)
}

// ComputeAllResults evaluates product on every platform, preserving order.
func ComputeAllResults(product Product, platforms []Platform, globalAdsPercent float64) []Result {
	out := make([]Result, 0, len(platforms))
	for _, platform := range platforms {
		out = append(out, ComputeResult(product, platform, globalAdsPercent))
	}
	return out
}

func percentOf(v, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return v / base * 100
}

func orElse(v, fallback float64) float64 {
	if v = finite(v); v != 0 {
		return v
	}
	return finite(fallback)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
