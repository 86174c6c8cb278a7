package snapshots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/profitlens/internal/calc"
)

func sampleProducts() []calc.Product {
	return []calc.Product{
		{
			ID: "p1", Name: "Baby Lotion", SKU: "BL-200", CostPrice: 140, GSTPercent: 18, MRP: 799, SellingPrice: 699,
			PlatformPricing: map[string]calc.PlatformPricing{"meesho": {MonthlyVolume: 10}},
		},
		{ID: "p2", Name: "Baby Wipes", SKU: "BW-80", CostPrice: 60, GSTPercent: 12, MRP: 249, SellingPrice: 199},
	}
}

func TestCapture(t *testing.T) {
	now := time.Date(2026, 4, 30, 23, 0, 0, 0, time.UTC)
	platforms := calc.DefaultPlatforms()
	snap := Capture(sampleProducts(), platforms, 5, now, "snap-1")

	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, "2026-04", snap.Month)
	assert.Equal(t, 5.0, snap.GlobalAdsPercent)
	require.Len(t, snap.PlatformData, len(platforms))
	require.NotNil(t, snap.PlatformData["zepto"].CommissionPercent)
	assert.Equal(t, 36.0, *snap.PlatformData["zepto"].CommissionPercent)
	assert.Nil(t, snap.PlatformData["myntra"].CommissionPercent)

	require.Len(t, snap.SKUResults, 2)
	first := snap.SKUResults[0]
	assert.Equal(t, "BL-200", first.SKUCode)
	require.Len(t, first.Platforms, len(platforms))

	want := calc.ComputeResult(sampleProducts()[0], platforms[7], 5)
	meesho := first.Platforms[7]
	assert.Equal(t, "meesho", meesho.PlatformID)
	assert.InDelta(t, want.Profit, meesho.Profit, 1e-9)
	assert.Equal(t, 10.0, meesho.Volume)
	assert.InDelta(t, want.Profit*10, meesho.MonthlyProfit, 1e-9)
}

func TestCaptureCopiesCommission(t *testing.T) {
	platforms := calc.DefaultPlatforms()
	snap := Capture(nil, platforms, 0, time.Now(), "x")
	*platforms[1].CommissionPercent = 99
	assert.Equal(t, 32.0, *snap.PlatformData["rk_world"].CommissionPercent)
}

func TestTotals(t *testing.T) {
	snap := Snapshot{SKUResults: []SKUResult{
		{SKUID: "a", Platforms: []PlatformResult{{MonthlyProfit: 100, Margin: 10}, {MonthlyProfit: -20, Margin: -5}}},
		{SKUID: "b", Platforms: []PlatformResult{{MonthlyProfit: 50, Margin: 25}}},
	}}
	sum := Totals(snap)
	assert.InDelta(t, 130, sum.TotalMonthlyProfit, 1e-9)
	assert.InDelta(t, 10, sum.AverageMargin, 1e-9)

	empty := Totals(Snapshot{})
	assert.Zero(t, empty.AverageMargin)
}

func TestCompare(t *testing.T) {
	commission := 30.0
	oldCommission := 36.0
	previous := Snapshot{
		ID: "1", Month: "2026-03",
		PlatformData: map[string]PlatformConfig{
			"zepto":   {AdsPercent: 2, CommissionPercent: &oldCommission},
			"retired": {AdsPercent: 1},
		},
		SKUResults: []SKUResult{{SKUID: "a", SKUName: "A", Platforms: []PlatformResult{
			{PlatformID: "zepto", Profit: 50, Margin: 10, MonthlyProfit: 500},
		}}},
	}
	latest := Snapshot{
		ID: "2", Month: "2026-04",
		PlatformData: map[string]PlatformConfig{
			"zepto":  {AdsPercent: 4, CommissionPercent: &commission},
			"meesho": {AdsPercent: 0},
		},
		SKUResults: []SKUResult{
			{SKUID: "a", SKUName: "A", Platforms: []PlatformResult{
				{PlatformID: "zepto", Profit: 70, Margin: 14, MonthlyProfit: 700},
				{PlatformID: "meesho", Profit: 20, Margin: 4, MonthlyProfit: 0},
			}},
			{SKUID: "new", Platforms: []PlatformResult{{PlatformID: "zepto", Profit: 1}}},
		},
	}
	oldest := Snapshot{ID: "0", Month: "2026-02"}

	cmp, ok := Compare([]Snapshot{latest, previous, oldest})
	require.True(t, ok)
	assert.Equal(t, "2", cmp.Latest.ID)
	assert.Equal(t, "1", cmp.Previous.ID)
	assert.InDelta(t, 200, cmp.MonthlyProfitDelta, 1e-9)

	require.Len(t, cmp.Platforms, 3)
	assert.Equal(t, "meesho", cmp.Platforms[0].PlatformID)
	assert.Nil(t, cmp.Platforms[0].Previous)
	assert.Equal(t, "retired", cmp.Platforms[1].PlatformID)
	assert.Nil(t, cmp.Platforms[1].Latest)
	zepto := cmp.Platforms[2]
	assert.Equal(t, 2.0, zepto.Previous.AdsPercent)
	assert.Equal(t, 4.0, zepto.Latest.AdsPercent)
	assert.Equal(t, 30.0, *zepto.Latest.CommissionPercent)

	require.Len(t, cmp.Results, 1)
	assert.Equal(t, "zepto", cmp.Results[0].PlatformID)
	assert.InDelta(t, 20, cmp.Results[0].ProfitChange, 1e-9)
	assert.InDelta(t, 4, cmp.Results[0].MarginChange, 1e-9)

	_, ok = Compare([]Snapshot{latest})
	assert.False(t, ok)
}
