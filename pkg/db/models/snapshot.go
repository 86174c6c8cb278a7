package models

import (
	"time"

	dbtypes "github.com/angelmondragon/profitlens/pkg/db/types"
)

// SnapshotPlatformConfig is the fee configuration in force at capture time.
type SnapshotPlatformConfig struct {
	AdsPercent        float64  `json:"adsPercent"`
	CommissionPercent *float64 `json:"commissionPercent,omitempty"`
}

// SnapshotPlatformResult summarises one SKU on one platform.
type SnapshotPlatformResult struct {
	PlatformID    string  `json:"platformId"`
	Profit        float64 `json:"profit"`
	Margin        float64 `json:"margin"`
	Volume        float64 `json:"volume"`
	MonthlyProfit float64 `json:"monthlyProfit"`
}

// SnapshotSKUResult groups a SKU's per-platform results.
type SnapshotSKUResult struct {
	SKUID     string                   `json:"skuId"`
	SKUName   string                   `json:"skuName"`
	SKUCode   string                   `json:"skuCode"`
	Platforms []SnapshotPlatformResult `json:"platforms"`
}

// Snapshot is an immutable monthly capture of computed results.
type Snapshot struct {
	ID               string                                               `gorm:"column:id;type:text;primaryKey"`
	Month            string                                               `gorm:"column:month;type:text;not null;index:idx_snapshots_month"`
	TakenAt          time.Time                                            `gorm:"column:taken_at;not null;index:idx_snapshots_taken_at"`
	GlobalAdsPercent float64                                              `gorm:"column:global_ads_percent;not null;default:0"`
	PlatformData     dbtypes.JSONValue[map[string]SnapshotPlatformConfig] `gorm:"column:platform_data;type:jsonb;not null"`
	SKUResults       dbtypes.JSONValue[[]SnapshotSKUResult]               `gorm:"column:sku_results;type:jsonb;not null"`
}
