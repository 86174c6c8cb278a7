package sheetsync

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/internal/settings"
	"github.com/angelmondragon/profitlens/internal/snapshots"
	"github.com/angelmondragon/profitlens/pkg/enums"
)

// Tab names in the backing spreadsheet.
const (
	TabSKUs             = "SKUs"
	TabPlatforms        = "Platforms"
	TabFeeChangeLogs    = "FeeChangeLogs"
	TabSnapshots        = "Snapshots"
	TabSnapshotDetails  = "SnapshotDetails"
	TabSettings         = "Settings"
	TabGlobalAdsPercent = "GlobalAdsPercent"
)

// Tabs lists every tab in read order.
var Tabs = []string{
	TabSKUs,
	TabPlatforms,
	TabFeeChangeLogs,
	TabSnapshots,
	TabSnapshotDetails,
	TabSettings,
	TabGlobalAdsPercent,
}

// timeLayout matches the millisecond UTC timestamps already in the sheet.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	skuBaseColumns         = []string{"id", "name", "sku", "costPrice", "gstPercent", "weight", "mrp", "sellingPrice", "notes"}
	skuPlatformSuffixes    = []string{"mrp", "sp", "settlement", "returnPercent", "monthlyVolume"}
	detailBaseColumns      = []string{"snapshotId", "skuId", "skuName", "skuCode"}
	detailPlatformSuffixes = []string{"profit", "margin", "volume", "monthlyProfit"}
	platformHeader         = []string{"id", "name", "type", "commissionPercent", "adsPercent", "feesExclTax"}
	feeLogHeader           = []string{"id", "platformId", "platformName", "field", "oldValue", "newValue", "date"}
	snapshotHeader         = []string{"id", "month", "date", "globalAdsPercent", "platformDataJSON"}
	settingsHeader         = []string{"minMarginAlert", "darkMode"}
	globalAdsHeader        = []string{"value"}
)

// Data is everything mirrored to the spreadsheet.
type Data struct {
	Products         []calc.Product       `json:"skus"`
	Platforms        []calc.Platform      `json:"platforms"`
	GlobalAdsPercent float64              `json:"globalAdsPercent"`
	ChangeLog        []changelog.Entry    `json:"feeChangeLogs"`
	Snapshots        []snapshots.Snapshot `json:"snapshots"`
	Settings         settings.Settings    `json:"settings"`
}

// ColumnPlatformIDs is the platform column order used in wide tabs: the
// built-in platforms first, then any others in the order given.
func ColumnPlatformIDs(platforms []calc.Platform) []string {
	ids := make([]string, 0, len(calc.DefaultPlatformIDs)+len(platforms))
	seen := make(map[string]struct{}, cap(ids))
	for _, id := range calc.DefaultPlatformIDs {
		ids = append(ids, id)
		seen[id] = struct{}{}
	}
	for _, p := range platforms {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

// Encode renders data as one row set per tab, header first.
func Encode(data Data) map[string][][]any {
	pids := ColumnPlatformIDs(data.Platforms)
	return map[string][][]any{
		TabSKUs:             encodeSKUs(data.Products, pids),
		TabPlatforms:        encodePlatforms(data.Platforms),
		TabFeeChangeLogs:    encodeFeeLogs(data.ChangeLog),
		TabSnapshots:        encodeSnapshots(data.Snapshots),
		TabSnapshotDetails:  encodeSnapshotDetails(data.Snapshots, pids),
		TabSettings:         {stringsRow(settingsHeader), {data.Settings.MinMarginAlert, boolCell(data.Settings.DarkMode)}},
		TabGlobalAdsPercent: {stringsRow(globalAdsHeader), {data.GlobalAdsPercent}},
	}
}

// Decode parses the tabs read from the spreadsheet. A tab holding no more
// than its header yields defaults: the built-in platforms, default settings
// and zero ad spend. Unparsable numbers read as zero.
func Decode(tabs map[string][][]string) Data {
	data := Data{
		Products:  decodeSKUs(tabs[TabSKUs]),
		Platforms: decodePlatforms(tabs[TabPlatforms]),
		ChangeLog: decodeFeeLogs(tabs[TabFeeChangeLogs]),
		Snapshots: decodeSnapshots(tabs[TabSnapshots], tabs[TabSnapshotDetails]),
		Settings: settings.Settings{
			MinMarginAlert: calc.DefaultMinMarginAlert,
		},
	}
	if rows := tabs[TabSettings]; len(rows) > 1 {
		row := rows[1]
		data.Settings.MinMarginAlert = number(cell(row, 0))
		if data.Settings.MinMarginAlert == 0 {
			data.Settings.MinMarginAlert = calc.DefaultMinMarginAlert
		}
		data.Settings.DarkMode = cell(row, 1) == "true"
	}
	if rows := tabs[TabGlobalAdsPercent]; len(rows) > 1 {
		data.GlobalAdsPercent = number(cell(rows[1], 0))
	}
	data.Settings.GlobalAdsPercent = data.GlobalAdsPercent
	return data
}

func encodeSKUs(products []calc.Product, pids []string) [][]any {
	header := append([]string{}, skuBaseColumns...)
	for _, pid := range pids {
		for _, suffix := range skuPlatformSuffixes {
			header = append(header, pid+"_"+suffix)
		}
	}
	rows := [][]any{stringsRow(header)}
	for _, p := range products {
		row := []any{p.ID, p.Name, p.SKU, p.CostPrice, p.GSTPercent, p.Weight, p.MRP, p.SellingPrice, p.Notes}
		for _, pid := range pids {
			pp, _ := p.Pricing(pid)
			var settlement any = ""
			if pp.Settlement != nil {
				settlement = *pp.Settlement
			}
			row = append(row, pp.MRP, pp.SellingPrice, settlement, pp.ReturnPercent, pp.MonthlyVolume)
		}
		rows = append(rows, row)
	}
	return rows
}

func decodeSKUs(rows [][]string) []calc.Product {
	if len(rows) <= 1 {
		return []calc.Product{}
	}
	pids := widePlatformIDs(rows[0], len(skuBaseColumns), skuPlatformSuffixes)
	out := make([]calc.Product, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := calc.Product{
			ID:              cell(row, 0),
			Name:            cell(row, 1),
			SKU:             cell(row, 2),
			CostPrice:       number(cell(row, 3)),
			GSTPercent:      number(cell(row, 4)),
			Weight:          number(cell(row, 5)),
			MRP:             number(cell(row, 6)),
			SellingPrice:    number(cell(row, 7)),
			Notes:           cell(row, 8),
			PlatformPricing: make(map[string]calc.PlatformPricing, len(pids)),
		}
		col := len(skuBaseColumns)
		for _, pid := range pids {
			pp := calc.PlatformPricing{
				MRP:           number(cell(row, col)),
				SellingPrice:  number(cell(row, col+1)),
				ReturnPercent: number(cell(row, col+3)),
				MonthlyVolume: number(cell(row, col+4)),
			}
			if raw := cell(row, col+2); raw != "" {
				v := number(raw)
				pp.Settlement = &v
			}
			p.PlatformPricing[pid] = pp
			col += len(skuPlatformSuffixes)
		}
		out = append(out, p)
	}
	return out
}

func encodePlatforms(platforms []calc.Platform) [][]any {
	rows := [][]any{stringsRow(platformHeader)}
	for _, p := range platforms {
		var commission any = ""
		if p.CommissionPercent != nil {
			commission = *p.CommissionPercent
		}
		rows = append(rows, []any{p.ID, p.Name, string(p.Type), commission, p.AdsPercent, boolCell(p.FeesExclusiveOfTax())})
	}
	return rows
}

func decodePlatforms(rows [][]string) []calc.Platform {
	if len(rows) <= 1 {
		return calc.DefaultPlatforms()
	}
	out := make([]calc.Platform, 0, len(rows)-1)
	for _, row := range rows[1:] {
		p := calc.Platform{
			ID:         cell(row, 0),
			Name:       cell(row, 1),
			Type:       enums.PlatformType(cell(row, 2)),
			AdsPercent: number(cell(row, 4)),
		}
		if p.Type == "" {
			p.Type = enums.PlatformTypeSPCommission
		}
		if raw := cell(row, 3); raw != "" {
			v := number(raw)
			p.CommissionPercent = &v
		}
		switch cell(row, 5) {
		case "true":
			v := true
			p.FeesExclTax = &v
		case "false":
			v := false
			p.FeesExclTax = &v
		}
		out = append(out, p)
	}
	return out
}

func encodeFeeLogs(entries []changelog.Entry) [][]any {
	rows := [][]any{stringsRow(feeLogHeader)}
	for _, e := range entries {
		rows = append(rows, []any{e.ID, e.PlatformID, e.PlatformName, e.Field, e.OldValue, e.NewValue, formatTime(e.Date)})
	}
	return rows
}

func decodeFeeLogs(rows [][]string) []changelog.Entry {
	if len(rows) <= 1 {
		return []changelog.Entry{}
	}
	out := make([]changelog.Entry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		out = append(out, changelog.Entry{
			ID:           cell(row, 0),
			PlatformID:   cell(row, 1),
			PlatformName: cell(row, 2),
			Field:        cell(row, 3),
			OldValue:     number(cell(row, 4)),
			NewValue:     number(cell(row, 5)),
			Date:         parseTime(cell(row, 6)),
		})
	}
	return out
}

func encodeSnapshots(snaps []snapshots.Snapshot) [][]any {
	rows := [][]any{stringsRow(snapshotHeader)}
	for _, s := range snaps {
		platformData, err := json.Marshal(s.PlatformData)
		if err != nil || s.PlatformData == nil {
			platformData = []byte("{}")
		}
		rows = append(rows, []any{s.ID, s.Month, formatTime(s.Date), s.GlobalAdsPercent, string(platformData)})
	}
	return rows
}

func encodeSnapshotDetails(snaps []snapshots.Snapshot, pids []string) [][]any {
	header := append([]string{}, detailBaseColumns...)
	for _, pid := range pids {
		for _, suffix := range detailPlatformSuffixes {
			header = append(header, pid+"_"+suffix)
		}
	}
	rows := [][]any{stringsRow(header)}
	for _, s := range snaps {
		for _, sr := range s.SKUResults {
			byPlatform := make(map[string]snapshots.PlatformResult, len(sr.Platforms))
			for _, pr := range sr.Platforms {
				byPlatform[pr.PlatformID] = pr
			}
			row := []any{s.ID, sr.SKUID, sr.SKUName, sr.SKUCode}
			for _, pid := range pids {
				pr := byPlatform[pid]
				row = append(row, pr.Profit, pr.Margin, pr.Volume, pr.MonthlyProfit)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// decodeSnapshots joins detail rows to their snapshot by id. Every decoded
// SKU result carries one entry per platform column, in column order.
func decodeSnapshots(metaRows, detailRows [][]string) []snapshots.Snapshot {
	if len(metaRows) <= 1 {
		return []snapshots.Snapshot{}
	}

	details := make(map[string][]snapshots.SKUResult)
	if len(detailRows) > 1 {
		pids := widePlatformIDs(detailRows[0], len(detailBaseColumns), detailPlatformSuffixes)
		for _, row := range detailRows[1:] {
			sr := snapshots.SKUResult{
				SKUID:     cell(row, 1),
				SKUName:   cell(row, 2),
				SKUCode:   cell(row, 3),
				Platforms: make([]snapshots.PlatformResult, 0, len(pids)),
			}
			col := len(detailBaseColumns)
			for _, pid := range pids {
				sr.Platforms = append(sr.Platforms, snapshots.PlatformResult{
					PlatformID:    pid,
					Profit:        number(cell(row, col)),
					Margin:        number(cell(row, col+1)),
					Volume:        number(cell(row, col+2)),
					MonthlyProfit: number(cell(row, col+3)),
				})
				col += len(detailPlatformSuffixes)
			}
			id := cell(row, 0)
			details[id] = append(details[id], sr)
		}
	}

	out := make([]snapshots.Snapshot, 0, len(metaRows)-1)
	for _, meta := range metaRows[1:] {
		id := cell(meta, 0)
		snap := snapshots.Snapshot{
			ID:               id,
			Month:            cell(meta, 1),
			Date:             parseTime(cell(meta, 2)),
			GlobalAdsPercent: number(cell(meta, 3)),
			PlatformData:     map[string]snapshots.PlatformConfig{},
			SKUResults:       details[id],
		}
		if snap.SKUResults == nil {
			snap.SKUResults = []snapshots.SKUResult{}
		}
		if raw := cell(meta, 4); raw != "" {
			var platformData map[string]snapshots.PlatformConfig
			if err := json.Unmarshal([]byte(raw), &platformData); err == nil && platformData != nil {
				snap.PlatformData = platformData
			}
		}
		out = append(out, snap)
	}
	return out
}

// widePlatformIDs recovers platform ids from a wide header, where each
// platform contributes one column per suffix after the base columns. A
// header that does not follow the layout falls back to the built-in order.
func widePlatformIDs(header []string, base int, suffixes []string) []string {
	if len(header) <= base {
		return calc.DefaultPlatformIDs
	}
	first := "_" + suffixes[0]
	var ids []string
	for col := base; col < len(header); col += len(suffixes) {
		name := strings.TrimSpace(header[col])
		if !strings.HasSuffix(name, first) {
			return calc.DefaultPlatformIDs
		}
		ids = append(ids, strings.TrimSuffix(name, first))
	}
	return ids
}

func stringsRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func number(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func boolCell(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
