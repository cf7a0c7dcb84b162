package io

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/matzehuels/harvest/pkg/aggregate"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/units"
)

// Summary is a flat export of one dataset.
type Summary struct {
	Source string              `json:"source"`
	Years  aggregate.YearRange `json:"years"`
	Totals []Total             `json:"totals"`
	Rows   []Row               `json:"rows"`
}

// Total is one year's global production.
type Total struct {
	Year      int     `json:"year"`
	Tonnes    float64 `json:"tonnes"`
	USTons    float64 `json:"usTons"`
	Countries int     `json:"countries"`
}

// Row is one country in one year.
type Row struct {
	Year          int     `json:"year"`
	Rank          int     `json:"rank"`
	Country       string  `json:"country"`
	Continent     string  `json:"continent"`
	Production    float64 `json:"production"`
	Share         float64 `json:"share"`
	AreaHarvested float64 `json:"areaHarvested,omitempty"`
	Yield         float64 `json:"yield,omitempty"`
}

// NewSummary flattens agg, ranking countries within each year by
// descending production. table supplies area and yield and may be nil.
func NewSummary(source string, agg *aggregate.Aggregate, table *aggregate.Table, ref *reference.Tables) Summary {
	if ref == nil {
		ref = reference.Default()
	}
	s := Summary{Source: source, Years: agg.Range()}
	for _, y := range agg.Years() {
		entries := agg.Countries(y)
		total := agg.Total(y)
		s.Totals = append(s.Totals, Total{Year: y, Tonnes: total, USTons: units.TonnesToUSTons(total), Countries: len(entries)})

		ranked := rankEntries(entries)
		denom := total
		if denom == 0 {
			denom = 1
		}
		for i, e := range ranked {
			row := Row{
				Year:       y,
				Rank:       i + 1,
				Country:    e.Country,
				Continent:  ref.Continent(e.Country),
				Production: e.Production,
				Share:      e.Production / denom,
			}
			if table != nil {
				if m, ok := table.Lookup(e.Country, y); ok {
					row.AreaHarvested, row.Yield = m.AreaHarvested, m.Yield
				}
			}
			s.Rows = append(s.Rows, row)
		}
	}
	return s
}

// rankEntries sorts a copy descending by production; ties keep input order.
func rankEntries(entries []aggregate.Entry) []aggregate.Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b aggregate.Entry) int {
		return cmp.Compare(b.Production, a.Production)
	})
	return out
}

// WriteJSON encodes a summary as indented JSON.
func WriteJSON(s Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a summary to a JSON file at path.
func ExportJSON(s Summary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(s, f)
}

// Sheet names in the exported workbook.
const (
	SheetTotals    = "Totals"
	SheetCountries = "Countries"
)

var (
	totalsHeader    = []string{"Year", "Production (t)", "Production (US tons)", "Countries"}
	countriesHeader = []string{"Year", "Rank", "Country", "Continent", "Production (t)", "Share", "Area Harvested (ha)", "Yield (kg/ha)"}
)

// Workbook builds the summary workbook. The caller closes it.
func Workbook(s Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTotals); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCountries); err != nil {
		f.Close()
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	totals := make([][]any, len(s.Totals))
	for i, t := range s.Totals {
		totals[i] = []any{t.Year, t.Tonnes, t.USTons, t.Countries}
	}
	rows := make([][]any, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = []any{r.Year, r.Rank, r.Country, r.Continent, r.Production, r.Share, r.AreaHarvested, r.Yield}
	}

	if err := writeSheet(f, SheetTotals, totalsHeader, totals); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, SheetCountries, countriesHeader, rows); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("%s header: %w", sheet, err)
		}
		col := strings.TrimRight(cell, "0123456789")
		if err := f.SetColWidth(sheet, col, col, 18); err != nil {
			return fmt.Errorf("%s width: %w", sheet, err)
		}
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

// WriteXLSX encodes a summary as an Excel workbook.
func WriteXLSX(s Summary, w io.Writer) error {
	f, err := Workbook(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportXLSX writes a summary workbook to path.
func ExportXLSX(s Summary, path string) error {
	f, err := Workbook(s)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
