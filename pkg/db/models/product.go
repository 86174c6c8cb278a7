package models

import (
	"time"

	dbtypes "github.com/angelmondragon/profitlens/pkg/db/types"
)

// PlatformPricing is a product's per-platform price override as persisted.
type PlatformPricing struct {
	MRP           float64  `json:"mrp"`
	SellingPrice  float64  `json:"sellingPrice"`
	Settlement    *float64 `json:"settlement,omitempty"`
	ReturnPercent float64  `json:"returnPercent,omitempty"`
	MonthlyVolume float64  `json:"monthlyVolume,omitempty"`
}

// Product is a sellable SKU with tax-exclusive cost.
type Product struct {
	ID              string                                        `gorm:"column:id;type:text;primaryKey"`
	Name            string                                        `gorm:"column:name;type:text;not null"`
	SKU             string                                        `gorm:"column:sku;type:text;not null;index:idx_products_sku"`
	CostPrice       float64                                       `gorm:"column:cost_price;not null;default:0"`
	GSTPercent      float64                                       `gorm:"column:gst_percent;not null;default:0"`
	Weight          float64                                       `gorm:"column:weight;not null;default:0"`
	MRP             float64                                       `gorm:"column:mrp;not null;default:0"`
	SellingPrice    float64                                       `gorm:"column:selling_price;not null;default:0"`
	Notes           string                                        `gorm:"column:notes;type:text;not null;default:''"`
	PlatformPricing dbtypes.JSONValue[map[string]PlatformPricing] `gorm:"column:platform_pricing;type:jsonb;not null"`
	Position        int                                           `gorm:"column:position;not null;default:0"`
	CreatedAt       time.Time                                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                                     `gorm:"column:updated_at;autoUpdateTime"`
}
