// Package changelog records edits to platform fee configuration.
package changelog

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/profitlens/internal/calc"
)

// DefaultLimit is the number of most recent entries retained.
const DefaultLimit = 500

const (
	FieldCommissionPercent = "commissionPercent"
	FieldAdsPercent        = "adsPercent"
)

// Entry is one recorded change of a numeric platform field.
type Entry struct {
	ID           string    `json:"id"`
	PlatformID   string    `json:"platformId"`
	PlatformName string    `json:"platformName"`
	Field        string    `json:"field"`
	OldValue     float64   `json:"oldValue"`
	NewValue     float64   `json:"newValue"`
	Date         time.Time `json:"date"`
}

// Diff returns one entry per numeric field whose value changed between old
// and updated. A field that goes from unset to set, or the reverse, is not a
// numeric change and produces no entry.
func Diff(old, updated calc.Platform, now time.Time) []Entry {
	var entries []Entry
	add := func(field string, before, after float64) {
		if before == after {
			return
		}
		entries = append(entries, Entry{
			ID:           uuid.NewString(),
			PlatformID:   updated.ID,
			PlatformName: updated.Name,
			Field:        field,
			OldValue:     before,
			NewValue:     after,
			Date:         now.UTC(),
		})
	}

	if old.CommissionPercent != nil && updated.CommissionPercent != nil {
		add(FieldCommissionPercent, *old.CommissionPercent, *updated.CommissionPercent)
	}
	add(FieldAdsPercent, old.AdsPercent, updated.AdsPercent)
	return entries
}

// Prepend puts entries in front of log, newest first, and keeps at most
// limit entries. A non-positive limit means DefaultLimit.
func Prepend(log, entries []Entry, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]Entry, 0, len(entries)+len(log))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	out = append(out, log...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
