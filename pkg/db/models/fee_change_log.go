package models

import "time"

// FeeChangeLog is an append-only audit row for a platform field edit.
type FeeChangeLog struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	PlatformID   string    `gorm:"column:platform_id;type:text;not null;index:idx_fee_change_logs_platform"`
	PlatformName string    `gorm:"column:platform_name;type:text;not null"`
	Field        string    `gorm:"column:field;type:text;not null"`
	OldValue     float64   `gorm:"column:old_value;not null"`
	NewValue     float64   `gorm:"column:new_value;not null"`
	ChangedAt    time.Time `gorm:"column:changed_at;not null;index:idx_fee_change_logs_changed_at"`
}
