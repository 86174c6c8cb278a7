package models

import (
	"time"

	"github.com/angelmondragon/profitlens/pkg/enums"
)

// Platform is a marketplace fee configuration.
type Platform struct {
	ID                string             `gorm:"column:id;type:text;primaryKey"`
	Name              string             `gorm:"column:name;type:text;not null"`
	Type              enums.PlatformType `gorm:"column:type;type:text;not null"`
	CommissionPercent *float64           `gorm:"column:commission_percent"`
	AdsPercent        float64            `gorm:"column:ads_percent;not null;default:0"`
	FeesExclTax       *bool              `gorm:"column:fees_excl_tax"`
	Position          int                `gorm:"column:position;not null;default:0"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
