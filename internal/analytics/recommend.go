package analytics

import "github.com/angelmondragon/profitlens/internal/calc"

// Recommendation names the most and least profitable platform for a product.
type Recommendation struct {
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Best        *calc.Result `json:"best,omitempty"`
	Worst       *calc.Result `json:"worst,omitempty"`
	// Spread is best minus worst per-unit profit.
	Spread float64 `json:"spread"`
}

// Recommend picks the maximum and minimum profit among results. On ties the
// first result encountered wins. Best and Worst are nil when results is empty.
func Recommend(product calc.Product, results []calc.Result) Recommendation {
	rec := Recommendation{ProductID: product.ID, ProductName: product.Name}
	if len(results) == 0 {
		return rec
	}
	best, worst := 0, 0
	for i := 1; i < len(results); i++ {
		if results[i].Profit > results[best].Profit {
			best = i
		}
		if results[i].Profit < results[worst].Profit {
			worst = i
		}
	}
	b, w := results[best], results[worst]
	rec.Best = &b
	rec.Worst = &w
	rec.Spread = b.Profit - w.Profit
	return rec
}

// RecommendAll returns one recommendation per product, in product order.
func RecommendAll(products []calc.Product, platforms []calc.Platform, globalAdsPercent float64) []Recommendation {
	out := make([]Recommendation, 0, len(products))
	for _, p := range products {
		out = append(out, Recommend(p, calc.ComputeAllResults(p, platforms, globalAdsPercent)))
	}
	return out
}
