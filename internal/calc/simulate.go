package calc

// Simulate evaluates product on platform as if its selling price on that
// platform were newSellingPrice. A newMRP of zero keeps the existing override
// MRP, falling back to the product default. Other platforms' overrides are
// carried over unchanged and the input product is not modified.
func Simulate(product Product, platform Platform, newSellingPrice, newMRP, globalAdsPercent float64) Result {
	pp, _ := product.Pricing(platform.ID)
	pp.SellingPrice = newSellingPrice
	pp.MRP = orElse(newMRP, orElse(pp.MRP, product.MRP))
	return ComputeResult(product.WithPricing(platform.ID, pp), platform, globalAdsPercent)
}
