package calc

import (
	"errors"
	"fmt"
	"math"
)

const (
	// BreakEvenMinPrice and BreakEvenMaxPrice bound the search in currency units.
	BreakEvenMinPrice = 1.0
	BreakEvenMaxPrice = 10000.0

	breakEvenIterations = 100
)

// ErrTargetUnreachable is matched by errors.Is when no price in the search
// bracket reaches the requested margin.
var ErrTargetUnreachable = errors.New("target margin unreachable")

// OutOfRangeError reports the best margin available at the top of the bracket.
type OutOfRangeError struct {
	TargetMargin float64
	BestMargin   float64
	MaxPrice     float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("target margin %.2f%% unreachable: best margin %.2f%% at price %.0f",
		e.TargetMargin, e.BestMargin, e.MaxPrice)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrTargetUnreachable
}

// FindBreakEvenPrice returns the smallest whole price in [1, 10000] whose
// margin on platform reaches targetMargin. MRP follows the probe upward so it
// never sits below the simulated price.
//
// When even the top of the bracket misses the target, the bracket maximum is
// returned together with an *OutOfRangeError.
func FindBreakEvenPrice(product Product, platform Platform, targetMargin, globalAdsPercent float64) (float64, error) {
	marginAt := func(price float64) float64 {
		return ComputeResult(probe(product, platform.ID, price), platform, globalAdsPercent).ProfitMargin
	}

	if best := marginAt(BreakEvenMaxPrice); best < targetMargin {
		return BreakEvenMaxPrice, &OutOfRangeError{
			TargetMargin: targetMargin,
			BestMargin:   best,
			MaxPrice:     BreakEvenMaxPrice,
		}
	}
	if marginAt(BreakEvenMinPrice) >= targetMargin {
		return BreakEvenMinPrice, nil
	}

	lo, hi := BreakEvenMinPrice, BreakEvenMaxPrice
	for i := 0; i < breakEvenIterations; i++ {
		mid := (lo + hi) / 2
		if marginAt(mid) < targetMargin {
			lo = mid
		} else {
			hi = mid
		}
	}
	return math.Ceil(hi), nil
}

func probe(product Product, platformID string, price float64) Product {
	pp, _ := product.Pricing(platformID)
	pp.SellingPrice = price
	pp.MRP = math.Max(price, product.MRP)
	return product.WithPricing(platformID, pp)
}
