package products

import (
	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	dbtypes "github.com/angelmondragon/profitlens/pkg/db/types"
)

func toDomain(row models.Product) calc.Product {
	out := calc.Product{
		ID:           row.ID,
		Name:         row.Name,
		SKU:          row.SKU,
		CostPrice:    row.CostPrice,
		GSTPercent:   row.GSTPercent,
		Weight:       row.Weight,
		MRP:          row.MRP,
		SellingPrice: row.SellingPrice,
		Notes:        row.Notes,
	}
	out.PlatformPricing = make(map[string]calc.PlatformPricing, len(row.PlatformPricing.Data))
	for id, pp := range row.PlatformPricing.Data {
		out.PlatformPricing[id] = calc.PlatformPricing{
			MRP:           pp.MRP,
			SellingPrice:  pp.SellingPrice,
			Settlement:    copyFloat(pp.Settlement),
			ReturnPercent: pp.ReturnPercent,
			MonthlyVolume: pp.MonthlyVolume,
		}
	}
	return out
}

func toModel(p calc.Product) models.Product {
	pricing := make(map[string]models.PlatformPricing, len(p.PlatformPricing))
	for id, pp := range p.PlatformPricing {
		pricing[id] = models.PlatformPricing{
			MRP:           pp.MRP,
			SellingPrice:  pp.SellingPrice,
			Settlement:    copyFloat(pp.Settlement),
			ReturnPercent: pp.ReturnPercent,
			MonthlyVolume: pp.MonthlyVolume,
		}
	}
	return models.Product{
		ID:              p.ID,
		Name:            p.Name,
		SKU:             p.SKU,
		CostPrice:       p.CostPrice,
		GSTPercent:      p.GSTPercent,
		Weight:          p.Weight,
		MRP:             p.MRP,
		SellingPrice:    p.SellingPrice,
		Notes:           p.Notes,
		PlatformPricing: dbtypes.NewJSONValue(pricing),
	}
}

func toDomainList(rows []models.Product) []calc.Product {
	out := make([]calc.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
