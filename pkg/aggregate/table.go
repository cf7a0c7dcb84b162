package aggregate

import "github.com/matzehuels/harvest/pkg/dataset"

// Metrics are the overlay's three measurements for one country-year.
// Zero means the measurement is absent.
type Metrics struct {
	Production    float64
	AreaHarvested float64
	Yield         float64
}

// Table is country -> year -> Metrics over every record regardless of year
// range. The map overlay reads it.
type Table struct {
	rows map[string]map[int]*Metrics
}

// BuildTable collects Production, Area harvested and Yield rows. Repeated
// rows for the same country, year and element are summed.
func BuildTable(records []dataset.Record) *Table {
	t := &Table{rows: make(map[string]map[int]*Metrics)}
	for _, r := range records {
		if !r.Valid() || r.Value < 0 {
			continue
		}
		var field func(m *Metrics) *float64
		switch r.Element {
		case dataset.ElementProduction:
			field = func(m *Metrics) *float64 { return &m.Production }
		case dataset.ElementArea:
			field = func(m *Metrics) *float64 { return &m.AreaHarvested }
		case dataset.ElementYield:
			field = func(m *Metrics) *float64 { return &m.Yield }
		default:
			continue
		}

		byYear := t.rows[r.Country]
		if byYear == nil {
			byYear = make(map[int]*Metrics)
			t.rows[r.Country] = byYear
		}
		m := byYear[r.Year]
		if m == nil {
			m = &Metrics{}
			byYear[r.Year] = m
		}
		*field(m) += r.Value
	}
	return t
}

// Lookup returns the metrics for a country-year.
func (t *Table) Lookup(country string, year int) (Metrics, bool) {
	m, ok := t.rows[country][year]
	if !ok {
		return Metrics{}, false
	}
	return *m, true
}

// Year returns every country with data in year.
func (t *Table) Year(year int) map[string]Metrics {
	out := make(map[string]Metrics)
	for c, byYear := range t.rows {
		if m, ok := byYear[year]; ok {
			out[c] = *m
		}
	}
	return out
}

// Len returns the number of countries in the table.
func (t *Table) Len() int { return len(t.rows) }
