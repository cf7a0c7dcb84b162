// Package aggregate reduces raw production records into per-year,
// per-country totals.
//
// An [Aggregate] is built once per dataset load and never mutated. It keeps
// the order in which countries first appear within a year, which is the
// tie-break for ranking.
package aggregate

import (
	"math"
	"slices"

	"github.com/matzehuels/harvest/pkg/dataset"
)

// YearRange is an inclusive range of supported years.
type YearRange struct {
	Start int `json:"start" toml:"start"`
	End   int `json:"end" toml:"end"`
}

// Contains reports whether y lies in the range.
func (r YearRange) Contains(y int) bool { return y >= r.Start && y <= r.End }

// Clamp moves y into the range.
func (r YearRange) Clamp(y int) int { return min(max(y, r.Start), r.End) }

// Entry is one country's summed production for a year.
type Entry struct {
	Country    string
	Production float64
}

type yearData struct {
	entries []Entry
	index   map[string]int
	total   float64
}

// Aggregate holds year -> country -> production plus derived totals.
type Aggregate struct {
	rng       YearRange
	years     map[int]*yearData
	globalMax float64
	dropped   int
}

// Build aggregates the Production rows of records that fall inside rng.
// Rows missing a country or year, with a non-numeric value, or with a
// negative value are dropped silently.
func Build(records []dataset.Record, rng YearRange) *Aggregate {
	a := &Aggregate{rng: rng, years: make(map[int]*yearData)}
	for _, r := range records {
		if r.Element != dataset.ElementProduction {
			continue
		}
		if !r.Valid() || r.Value < 0 || !rng.Contains(r.Year) {
			a.dropped++
			continue
		}
		yd := a.years[r.Year]
		if yd == nil {
			yd = &yearData{index: make(map[string]int)}
			a.years[r.Year] = yd
		}
		i, ok := yd.index[r.Country]
		if !ok {
			i = len(yd.entries)
			yd.index[r.Country] = i
			yd.entries = append(yd.entries, Entry{Country: r.Country})
		}
		yd.entries[i].Production += r.Value
		yd.total += r.Value
	}
	for _, yd := range a.years {
		for _, e := range yd.entries {
			a.globalMax = math.Max(a.globalMax, e.Production)
		}
	}
	return a
}

// Range returns the configured year range.
func (a *Aggregate) Range() YearRange { return a.rng }

// Empty reports whether no year has data.
func (a *Aggregate) Empty() bool { return len(a.years) == 0 }

// Has reports whether year has at least one country.
func (a *Aggregate) Has(year int) bool {
	_, ok := a.years[year]
	return ok
}

// Years returns the years with data in ascending order.
func (a *Aggregate) Years() []int {
	ys := make([]int, 0, len(a.years))
	for y := range a.years {
		ys = append(ys, y)
	}
	slices.Sort(ys)
	return ys
}

// Countries returns the year's entries in first-appearance order. The
// returned slice is a copy.
func (a *Aggregate) Countries(year int) []Entry {
	yd := a.years[year]
	if yd == nil {
		return nil
	}
	return slices.Clone(yd.entries)
}

// Production returns one country's total for a year.
func (a *Aggregate) Production(country string, year int) (float64, bool) {
	yd := a.years[year]
	if yd == nil {
		return 0, false
	}
	i, ok := yd.index[country]
	if !ok {
		return 0, false
	}
	return yd.entries[i].Production, true
}

// Total returns the sum over all countries for year, 0 when absent.
func (a *Aggregate) Total(year int) float64 {
	if yd := a.years[year]; yd != nil {
		return yd.total
	}
	return 0
}

// GlobalMax returns the largest single country-year value across the
// aggregate. It fixes the bubble size scale domain.
func (a *Aggregate) GlobalMax() float64 { return a.globalMax }

// Dropped counts Production rows rejected as malformed or out of range.
func (a *Aggregate) Dropped() int { return a.dropped }

// Series returns (year, total) pairs in ascending year order.
func (a *Aggregate) Series() []YearTotal {
	ys := a.Years()
	out := make([]YearTotal, len(ys))
	for i, y := range ys {
		out[i] = YearTotal{Year: y, Total: a.years[y].total}
	}
	return out
}

// YearTotal is one point of the global production series.
type YearTotal struct {
	Year  int
	Total float64
}
