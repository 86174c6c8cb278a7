package models

import "time"

// AppSettingsID is the primary key of the single settings row.
const AppSettingsID = 1

// AppSetting holds user preferences and the global ads rate.
type AppSetting struct {
	ID               int       `gorm:"column:id;primaryKey;autoIncrement:false"`
	MinMarginAlert   float64   `gorm:"column:min_margin_alert;not null"`
	DarkMode         bool      `gorm:"column:dark_mode;not null;default:false"`
	GlobalAdsPercent float64   `gorm:"column:global_ads_percent;not null;default:0"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
