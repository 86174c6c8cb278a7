package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/money"
)

const defaultImportGST = 18

// ErrNoRows is returned when an import has a header but no data.
var ErrNoRows = errors.New("csv has no data rows")

// RowError reports a problem on one line of an import.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// TemplateHeaders lists the base columns followed by per-platform columns.
// Fixed-settlement platforms take a settlement column instead of prices.
func TemplateHeaders(platforms []calc.Platform) []string {
	headers := []string{"Name", "SKU", "Cost", "GST", "Weight", "MRP", "SP", "Notes"}
	for _, p := range platforms {
		if p.Type == enums.PlatformTypeFixedSettlement {
			headers = append(headers, p.Name+"_Settlement")
		} else {
			headers = append(headers, p.Name+"_SP", p.Name+"_MRP")
		}
		headers = append(headers, p.Name+"_Return%", p.Name+"_Volume")
	}
	return headers
}

// TemplateRows renders products in the template layout. An empty catalogue
// yields one example row.
func TemplateRows(products []calc.Product, platforms []calc.Platform) [][]string {
	if len(products) == 0 {
		row := []string{"Hair Building Fiber", "HBF-S-BLK-561", "140", "18", "180", "799", "699", ""}
		for _, p := range platforms {
			if p.Type == enums.PlatformTypeFixedSettlement {
				row = append(row, "450", "0", "0")
			} else {
				row = append(row, "699", "799", "0", "0")
			}
		}
		return [][]string{row}
	}

	rows := make([][]string, 0, len(products))
	for _, s := range products {
		row := []string{
			s.Name, s.SKU, money.Plain(s.CostPrice), money.Plain(s.GSTPercent),
			money.Plain(s.Weight), money.Plain(s.MRP), money.Plain(s.SellingPrice), s.Notes,
		}
		for _, p := range platforms {
			pp, _ := s.Pricing(p.ID)
			if p.Type == enums.PlatformTypeFixedSettlement {
				settlement := 0.0
				if pp.Settlement != nil {
					settlement = *pp.Settlement
				}
				row = append(row, money.Plain(settlement))
			} else {
				row = append(row, money.Plain(pp.SellingPrice), money.Plain(pp.MRP))
			}
			row = append(row, money.Plain(pp.ReturnPercent), money.Plain(pp.MonthlyVolume))
		}
		rows = append(rows, row)
	}
	return rows
}

// ExportTemplate writes the SKU template to w.
func ExportTemplate(w io.Writer, products []calc.Product, platforms []calc.Platform) error {
	return WriteQuoted(w, TemplateHeaders(platforms), TemplateRows(products, platforms))
}

// ParseProducts reads an SKU import. Columns are matched by header name and
// several aliases are accepted for the base columns. Rows with neither a
// name nor a SKU are skipped. Rows that fail to parse are left out and
// their errors combined into the returned error, so callers may still
// import the products that did parse.
func ParseProducts(r io.Reader, platforms []calc.Platform) ([]calc.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var (
		out  []calc.Product
		errs error
		line = 1
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			} else {
				line++
			}
			errs = multierr.Append(errs, &RowError{Line: line, Err: err})
			continue
		}
		line, _ = reader.FieldPos(0)
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		product, skip, err := parseProductRow(row, platforms)
		if err != nil {
			errs = multierr.Append(errs, &RowError{Line: line, Err: err})
			continue
		}
		if !skip {
			out = append(out, product)
		}
	}
	if len(out) == 0 && errs == nil {
		return nil, ErrNoRows
	}
	return out, errs
}

func parseProductRow(row map[string]string, platforms []calc.Platform) (calc.Product, bool, error) {
	name := first(row, "Name", "Product Name", "name")
	sku := first(row, "SKU", "sku", "SKU Code")
	if name == "" && sku == "" {
		return calc.Product{}, true, nil
	}

	p := &rowParser{row: row}
	product := calc.Product{
		Name:         name,
		SKU:          sku,
		CostPrice:    p.number("Cost", "Cost Price", "cost"),
		GSTPercent:   p.number("GST", "GST%", "gst"),
		Weight:       p.number("Weight", "weight"),
		MRP:          p.number("MRP", "mrp"),
		SellingPrice: p.number("SP", "Selling Price", "sp"),
		Notes:        first(row, "Notes", "notes"),
	}
	if first(row, "GST", "GST%", "gst") == "" {
		product.GSTPercent = defaultImportGST
	}

	product.PlatformPricing = make(map[string]calc.PlatformPricing, len(platforms))
	for _, platform := range platforms {
		pp := calc.PlatformPricing{
			MRP:           orDefault(p.number(platform.Name+"_MRP"), product.MRP),
			SellingPrice:  orDefault(p.number(platform.Name+"_SP"), product.SellingPrice),
			ReturnPercent: p.number(platform.Name + "_Return%"),
			MonthlyVolume: p.number(platform.Name + "_Volume"),
		}
		if platform.Type == enums.PlatformTypeFixedSettlement && row[platform.Name+"_Settlement"] != "" {
			settlement := p.number(platform.Name + "_Settlement")
			pp.Settlement = &settlement
		}
		product.PlatformPricing[platform.ID] = pp
	}
	if p.err != nil {
		return calc.Product{}, false, p.err
	}
	return product, false, nil
}

type rowParser struct {
	row map[string]string
	err error
}

// number parses the first non-empty aliased column. Blank cells read as 0;
// the first unparsable cell is kept as the row error.
func (p *rowParser) number(keys ...string) float64 {
	for _, k := range keys {
		raw := p.row[k]
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			if p.err == nil {
				p.err = fmt.Errorf("column %q: invalid number %q", k, raw)
			}
			return 0
		}
		return v
	}
	return 0
}

func first(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
