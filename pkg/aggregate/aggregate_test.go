package aggregate

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/harvest/pkg/dataset"
)

var cocoaYears = YearRange{Start: 1963, End: 2023}

func prod(country string, year int, v float64) dataset.Record {
	return dataset.Record{Country: country, Element: dataset.ElementProduction, Year: year, Value: v}
}

func TestBuildSumsAndTotals(t *testing.T) {
	a := Build([]dataset.Record{
		prod("Ghana", 2023, 1000),
		prod("Nigeria", 2023, 500),
		prod("Ghana", 2023, 250),
		prod("Ghana", 2022, 900),
	}, cocoaYears)

	if got := a.Total(2023); got != 1750 {
		t.Errorf("Total(2023) = %v, want 1750", got)
	}
	if got, _ := a.Production("Ghana", 2023); got != 1250 {
		t.Errorf("Production(Ghana, 2023) = %v, want 1250", got)
	}
	if got := a.GlobalMax(); got != 1250 {
		t.Errorf("GlobalMax() = %v, want 1250", got)
	}
	if diff := cmp.Diff([]int{2022, 2023}, a.Years()); diff != "" {
		t.Errorf("Years() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildKeepsFirstAppearanceOrder(t *testing.T) {
	a := Build([]dataset.Record{
		prod("Togo", 2023, 5),
		prod("Ghana", 2023, 5),
		prod("Togo", 2023, 1),
		prod("Peru", 2023, 5),
	}, cocoaYears)

	want := []Entry{{"Togo", 6}, {"Ghana", 5}, {"Peru", 5}}
	if diff := cmp.Diff(want, a.Countries(2023)); diff != "" {
		t.Errorf("Countries() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDropsMalformed(t *testing.T) {
	a := Build([]dataset.Record{
		prod("", 2023, 1),
		prod("Ghana", 0, 1),
		prod("Ghana", 2023, math.NaN()),
		prod("Ghana", 2023, math.Inf(1)),
		prod("Ghana", 2023, -5),
		prod("Ghana", 1900, 1),
		{Country: "Ghana", Element: dataset.ElementArea, Year: 2023, Value: 10},
		prod("Ghana", 2023, 7),
	}, cocoaYears)

	if got := a.Total(2023); got != 7 {
		t.Errorf("Total(2023) = %v, want 7", got)
	}
	if got := a.Dropped(); got != 6 {
		t.Errorf("Dropped() = %d, want 6", got)
	}
}

func TestBuildEmpty(t *testing.T) {
	for name, records := range map[string][]dataset.Record{
		"nil":       nil,
		"malformed": {prod("", 0, math.NaN())},
	} {
		a := Build(records, cocoaYears)
		if !a.Empty() {
			t.Errorf("%s: Empty() = false", name)
		}
		if a.Has(2023) || a.Total(2023) != 0 || a.Countries(2023) != nil {
			t.Errorf("%s: expected no data for 2023", name)
		}
	}
}

func TestCountriesReturnsCopy(t *testing.T) {
	a := Build([]dataset.Record{prod("Ghana", 2023, 1)}, cocoaYears)
	c := a.Countries(2023)
	c[0].Production = 99
	if got, _ := a.Production("Ghana", 2023); got != 1 {
		t.Errorf("aggregate mutated through Countries(): %v", got)
	}
}

func TestSeries(t *testing.T) {
	a := Build([]dataset.Record{prod("Ghana", 2001, 3), prod("Ghana", 2000, 2), prod("Peru", 2000, 1)}, cocoaYears)
	want := []YearTotal{{2000, 3}, {2001, 3}}
	if diff := cmp.Diff(want, a.Series()); diff != "" {
		t.Errorf("Series() mismatch (-want +got):\n%s", diff)
	}
}

func TestYearRange(t *testing.T) {
	if got := cocoaYears.Clamp(1900); got != 1963 {
		t.Errorf("Clamp(1900) = %d", got)
	}
	if got := cocoaYears.Clamp(2050); got != 2023 {
		t.Errorf("Clamp(2050) = %d", got)
	}
	if !cocoaYears.Contains(1963) || cocoaYears.Contains(2024) {
		t.Error("Contains bounds wrong")
	}
}

func TestBuildTable(t *testing.T) {
	tb := BuildTable([]dataset.Record{
		prod("Ghana", 2023, 1000),
		{Country: "Ghana", Element: dataset.ElementArea, Year: 2023, Value: 1500},
		{Country: "Ghana", Element: dataset.ElementYield, Year: 2023, Value: 667},
		{Country: "Ghana", Element: "Stocks", Year: 2023, Value: 1},
		prod("Ghana", 2023, 10),
		prod("Peru", 1961, 20),
	})

	m, ok := tb.Lookup("Ghana", 2023)
	if !ok {
		t.Fatal("Lookup(Ghana, 2023) missing")
	}
	if diff := cmp.Diff(Metrics{Production: 1010, AreaHarvested: 1500, Yield: 667}, m); diff != "" {
		t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
	}
	if _, ok := tb.Lookup("Ghana", 1990); ok {
		t.Error("Lookup(Ghana, 1990) should miss")
	}
	if _, ok := tb.Lookup("Peru", 1961); !ok {
		t.Error("Lookup(Peru, 1961) should hit outside the story years")
	}
	if got := tb.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2 countries", got)
	}
	if got := len(tb.Year(2023)); got != 1 {
		t.Errorf("len(Year(2023)) = %d", got)
	}
}
