// Package dataset reads production records from CSV, XLSX or a URL.
//
// Readers type each row leniently: a missing or unparseable year becomes 0
// and an unparseable value becomes NaN. Rows are never dropped here; the
// aggregator decides what counts as malformed.
package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Measurement types in the Element column.
const (
	ElementProduction = "Production"
	ElementArea       = "Area harvested"
	ElementYield      = "Yield"
)

// Record is one country/year/measurement observation.
type Record struct {
	Country string
	Element string
	Year    int
	Value   float64
}

// Valid reports whether r carries a country, a year and a finite value.
func (r Record) Valid() bool {
	return r.Country != "" && r.Year != 0 && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// columns locates the four required fields in a header row.
type columns struct {
	area, element, year, value int
}

func findColumns(header []string) (columns, bool) {
	c := columns{-1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "area", "country":
			if c.area < 0 {
				c.area = i
			}
		case "element":
			c.element = i
		case "year":
			c.year = i
		case "value":
			c.value = i
		}
	}
	ok := c.area >= 0 && c.element >= 0 && c.year >= 0 && c.value >= 0
	return c, ok
}

func (c columns) record(row []string) Record {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	r := Record{
		Country: cell(c.area),
		Element: cell(c.element),
		Value:   math.NaN(),
	}
	if y, err := strconv.Atoi(cell(c.year)); err == nil {
		r.Year = y
	}
	if v, err := strconv.ParseFloat(strings.ReplaceAll(cell(c.value), ",", ""), 64); err == nil {
		r.Value = v
	}
	return r
}
