package calc

import (
	"fmt"
	"strconv"

	"github.com/angelmondragon/profitlens/pkg/enums"
)

const (
	amazonShippingFee    = 42
	amazonPickAndPackFee = 17
	blinkitShippingFee   = 50
	blinkitStorageRate   = 0.19
)

// FeesFor dispatches to the fee schedule of the platform type. The
// fixed_settlement type has no schedule of its own; when the engine falls
// back to the formula branch for it, commission is charged on SP like the
// default schedule.
func FeesFor(platform Platform, sp, mrp float64) FeeBreakdown {
	switch platform.Type {
	case enums.PlatformTypeAmazonFBA:
		return AmazonFBAFees(sp)
	case enums.PlatformTypeBlinkit:
		return BlinkitFees(sp)
	case enums.PlatformTypeMRPCommission:
		return MRPCommissionFees(sp, mrp, platform.Commission())
	case enums.PlatformTypeZeroCommission:
		return SPCommissionFees(sp, 0)
	case enums.PlatformTypeSPCommission, enums.PlatformTypeFixedSettlement:
		return SPCommissionFees(sp, platform.Commission())
	default:
		return SPCommissionFees(sp, platform.Commission())
	}
}

// AmazonFBAFees applies the referral slabs, closing fee and fixed
// fulfilment charges. Fees are quoted exclusive of GST.
func AmazonFBAFees(sp float64) FeeBreakdown {
	rate := 0.0
	switch {
	case sp < 300:
		rate = 0
	case sp < 500:
		rate = 5
	default:
		rate = 9
	}

	closing := 12.0
	if sp >= 500 {
		closing = 25
	}

	return FeeBreakdown{
		Commission:      sp * rate / 100,
		CommissionLabel: fmt.Sprintf("Referral Fee (%s%%)", formatPercent(rate)),
		ClosingFee:      closing,
		ShippingFee:     amazonShippingFee,
		PickAndPackFee:  amazonPickAndPackFee,
	}
}

// BlinkitFees applies the commission slabs plus shipping and a storage
// charge proportional to SP. Fees are quoted exclusive of GST.
func BlinkitFees(sp float64) FeeBreakdown {
	rate := blinkitRate(sp)
	return FeeBreakdown{
		Commission:      sp * rate / 100,
		CommissionLabel: fmt.Sprintf("Commission (%s%%)", formatPercent(rate)),
		ShippingFee:     blinkitShippingFee,
		StorageFee:      sp * blinkitStorageRate,
	}
}

// Slab bounds are inclusive whole-rupee ranges; anything that falls between
// them (including fractional prices such as 500.5) lands in the top slab.
func blinkitRate(sp float64) float64 {
	switch {
	case sp >= 0 && sp <= 500:
		return 2
	case sp >= 501 && sp <= 700:
		return 6
	case sp >= 701 && sp <= 900:
		return 13
	case sp >= 901 && sp <= 1200:
		return 16
	default:
		return 18
	}
}

// SPCommissionFees charges a flat percentage of the selling price.
func SPCommissionFees(sp, percent float64) FeeBreakdown {
	return FeeBreakdown{
		Commission:      sp * percent / 100,
		CommissionLabel: fmt.Sprintf("Commission (%s%%)", formatPercent(percent)),
	}
}

// MRPCommissionFees charges a percentage of MRP and treats the gap between
// MRP and SP as a deducted discount. The discount is not floored, so an SP
// above MRP yields a negative discount.
func MRPCommissionFees(sp, mrp, percent float64) FeeBreakdown {
	return FeeBreakdown{
		Commission:      mrp * percent / 100,
		CommissionLabel: fmt.Sprintf("Commission (%s%% on MRP)", formatPercent(percent)),
		Discount:        mrp - sp,
	}
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
