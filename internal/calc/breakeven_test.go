package calc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBreakEvenPriceIsSmallestWholePrice(t *testing.T) {
	product := sampleProduct()

	// Commission platforms, where margin only rises with price.
	for _, id := range []string{"rk_world", "instamart", "zepto", "nykaa", "meesho"} {
		platform := platformByID(t, id)
		for _, target := range []float64{0, 10, 25} {
			price, err := FindBreakEvenPrice(product, platform, target, 0)
			require.NoError(t, err, "platform=%s target=%v", id, target)
			assert.Equal(t, float64(int(price)), price, "platform=%s target=%v whole rupees", id, target)

			at := Simulate(product, platform, price, maxFloat(price, product.MRP), 0)
			assert.GreaterOrEqual(t, at.ProfitMargin, target, "platform=%s target=%v", id, target)

			require.Greater(t, price, BreakEvenMinPrice, "platform=%s target=%v", id, target)
			below := Simulate(product, platform, price-1, maxFloat(price-1, product.MRP), 0)
			assert.Less(t, below.ProfitMargin, target, "platform=%s target=%v one rupee lower", id, target)
		}
	}
}

func TestFindBreakEvenPriceTieredFees(t *testing.T) {
	product := sampleProduct()

	for _, id := range []string{"amazon_fba", "blinkit"} {
		platform := platformByID(t, id)
		for _, target := range []float64{0, 10, 25} {
			price, err := FindBreakEvenPrice(product, platform, target, 0)
			require.NoError(t, err, "platform=%s target=%v", id, target)

			res := Simulate(product, platform, price, maxFloat(price, product.MRP), 0)
			assert.GreaterOrEqual(t, res.ProfitMargin, target-0.1, "platform=%s target=%v", id, target)
		}
	}
}

func TestFindBreakEvenPriceUnreachable(t *testing.T) {
	platform := platformByID(t, "rk_world")

	price, err := FindBreakEvenPrice(sampleProduct(), platform, 95, 0)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetUnreachable))
	var oor *OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, 95.0, oor.TargetMargin)
	assert.Less(t, oor.BestMargin, 95.0)
	assert.Equal(t, BreakEvenMaxPrice, price)
}

func TestFindBreakEvenPriceLowerBound(t *testing.T) {
	product := Product{SellingPrice: 10}
	platform := platformByID(t, "meesho")

	price, err := FindBreakEvenPrice(product, platform, -50, 0)

	require.NoError(t, err)
	assert.Equal(t, BreakEvenMinPrice, price)
}

func TestFindBreakEvenPriceDoesNotMutate(t *testing.T) {
	product := sampleProduct()
	product.PlatformPricing = map[string]PlatformPricing{"zepto": {MRP: 899, SellingPrice: 749}}

	_, _ = FindBreakEvenPrice(product, platformByID(t, "zepto"), 10, 0)

	assert.Equal(t, PlatformPricing{MRP: 899, SellingPrice: 749}, product.PlatformPricing["zepto"])
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
