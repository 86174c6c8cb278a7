// Package snapshots captures monthly profit results and compares them.
package snapshots

import (
	"sort"
	"time"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/db/models"
)

// MonthLayout formats the month a snapshot belongs to.
const MonthLayout = "2006-01"

type (
	PlatformConfig = models.SnapshotPlatformConfig
	PlatformResult = models.SnapshotPlatformResult
	SKUResult      = models.SnapshotSKUResult
)

// Snapshot is an immutable capture of every product on every platform.
type Snapshot struct {
	ID               string                    `json:"id"`
	Month            string                    `json:"month"`
	Date             time.Time                 `json:"date"`
	GlobalAdsPercent float64                   `json:"globalAdsPercent"`
	PlatformData     map[string]PlatformConfig `json:"platformData"`
	SKUResults       []SKUResult               `json:"skuResults"`
}

// Capture evaluates every product on every platform at now.
func Capture(products []calc.Product, platforms []calc.Platform, globalAdsPercent float64, now time.Time, id string) Snapshot {
	now = now.UTC()
	snap := Snapshot{
		ID:               id,
		Month:            now.Format(MonthLayout),
		Date:             now,
		GlobalAdsPercent: globalAdsPercent,
		PlatformData:     make(map[string]PlatformConfig, len(platforms)),
		SKUResults:       make([]SKUResult, 0, len(products)),
	}

	for _, p := range platforms {
		cfg := PlatformConfig{AdsPercent: p.AdsPercent}
		if p.CommissionPercent != nil {
			v := *p.CommissionPercent
			cfg.CommissionPercent = &v
		}
		snap.PlatformData[p.ID] = cfg
	}

	for _, product := range products {
		row := SKUResult{
			SKUID:     product.ID,
			SKUName:   product.Name,
			SKUCode:   product.SKU,
			Platforms: make([]PlatformResult, 0, len(platforms)),
		}
		for _, r := range calc.ComputeAllResults(product, platforms, globalAdsPercent) {
			row.Platforms = append(row.Platforms, PlatformResult{
				PlatformID:    r.PlatformID,
				Profit:        r.Profit,
				Margin:        r.ProfitMargin,
				Volume:        r.MonthlyVolume,
				MonthlyProfit: r.MonthlyProfit,
			})
		}
		snap.SKUResults = append(snap.SKUResults, row)
	}
	return snap
}

// Summary carries the headline figures of one snapshot.
type Summary struct {
	ID                 string    `json:"id"`
	Month              string    `json:"month"`
	Date               time.Time `json:"date"`
	GlobalAdsPercent   float64   `json:"globalAdsPercent"`
	TotalMonthlyProfit float64   `json:"totalMonthlyProfit"`
	AverageMargin      float64   `json:"averageMargin"`
}

// Totals sums monthly profit and averages margin over every recorded pair.
// A snapshot without pairs has an average margin of 0.
func Totals(s Snapshot) Summary {
	sum := Summary{
		ID:               s.ID,
		Month:            s.Month,
		Date:             s.Date,
		GlobalAdsPercent: s.GlobalAdsPercent,
	}
	var margins float64
	var n int
	for _, sku := range s.SKUResults {
		for _, p := range sku.Platforms {
			sum.TotalMonthlyProfit += p.MonthlyProfit
			margins += p.Margin
			n++
		}
	}
	if n > 0 {
		sum.AverageMargin = margins / float64(n)
	}
	return sum
}

// PlatformChange shows a platform's configuration in both snapshots. A nil
// side means the platform did not exist then.
type PlatformChange struct {
	PlatformID string          `json:"platformId"`
	Previous   *PlatformConfig `json:"previous,omitempty"`
	Latest     *PlatformConfig `json:"latest,omitempty"`
}

// ResultChange is the movement of one SKU on one platform.
type ResultChange struct {
	SKUID          string  `json:"skuId"`
	SKUName        string  `json:"skuName"`
	PlatformID     string  `json:"platformId"`
	PreviousProfit float64 `json:"previousProfit"`
	LatestProfit   float64 `json:"latestProfit"`
	ProfitChange   float64 `json:"profitChange"`
	PreviousMargin float64 `json:"previousMargin"`
	LatestMargin   float64 `json:"latestMargin"`
	MarginChange   float64 `json:"marginChange"`
}

// Comparison diffs the latest snapshot against the one before it.
type Comparison struct {
	Latest             Summary          `json:"latest"`
	Previous           Summary          `json:"previous"`
	MonthlyProfitDelta float64          `json:"monthlyProfitDelta"`
	AverageMarginDelta float64          `json:"averageMarginDelta"`
	Platforms          []PlatformChange `json:"platforms"`
	Results            []ResultChange   `json:"results"`
}

// Compare diffs snapshots[0] (latest) against snapshots[1]. Older snapshots
// are ignored. ok is false when fewer than two snapshots exist.
func Compare(snapshots []Snapshot) (Comparison, bool) {
	if len(snapshots) < 2 {
		return Comparison{}, false
	}
	latest, previous := snapshots[0], snapshots[1]

	cmp := Comparison{
		Latest:   Totals(latest),
		Previous: Totals(previous),
	}
	cmp.MonthlyProfitDelta = cmp.Latest.TotalMonthlyProfit - cmp.Previous.TotalMonthlyProfit
	cmp.AverageMarginDelta = cmp.Latest.AverageMargin - cmp.Previous.AverageMargin

	for _, id := range platformIDs(latest, previous) {
		change := PlatformChange{PlatformID: id}
		if cfg, ok := previous.PlatformData[id]; ok {
			c := cfg
			change.Previous = &c
		}
		if cfg, ok := latest.PlatformData[id]; ok {
			c := cfg
			change.Latest = &c
		}
		cmp.Platforms = append(cmp.Platforms, change)
	}

	before := make(map[string]map[string]PlatformResult, len(previous.SKUResults))
	for _, sku := range previous.SKUResults {
		byPlatform := make(map[string]PlatformResult, len(sku.Platforms))
		for _, p := range sku.Platforms {
			byPlatform[p.PlatformID] = p
		}
		before[sku.SKUID] = byPlatform
	}
	for _, sku := range latest.SKUResults {
		prior, ok := before[sku.SKUID]
		if !ok {
			continue
		}
		for _, p := range sku.Platforms {
			old, ok := prior[p.PlatformID]
			if !ok {
				continue
			}
			cmp.Results = append(cmp.Results, ResultChange{
				SKUID:          sku.SKUID,
				SKUName:        sku.SKUName,
				PlatformID:     p.PlatformID,
				PreviousProfit: old.Profit,
				LatestProfit:   p.Profit,
				ProfitChange:   p.Profit - old.Profit,
				PreviousMargin: old.Margin,
				LatestMargin:   p.Margin,
				MarginChange:   p.Margin - old.Margin,
			})
		}
	}
	return cmp, true
}

func platformIDs(snaps ...Snapshot) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, s := range snaps {
		for id := range s.PlatformData {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
