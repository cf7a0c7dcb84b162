package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/harvest/pkg/dataset"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in      string
		want    []sink.Format
		wantErr bool
	}{
		{in: "", want: []sink.Format{sink.FormatSVG}},
		{in: "svg", want: []sink.Format{sink.FormatSVG}},
		{in: "svg, JSON,png", want: []sink.Format{sink.FormatSVG, sink.FormatJSON, sink.FormatPNG}},
		{in: "svg,gif", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormats(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFormats(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFormats(%q) (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" Ghana, ,Brazil,")
	if diff := cmp.Diff([]string{"Ghana", "Brazil"}, got); diff != "" {
		t.Errorf("parseList (-want +got):\n%s", diff)
	}
	if got := parseList(""); got != nil {
		t.Errorf("parseList(\"\") = %v, want nil", got)
	}
}

func TestOutputPaths(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		formats  []sink.Format
		expected map[sink.Format]string
	}{
		{
			name:     "single format uses output as given",
			output:   "out/story.svg",
			formats:  []sink.Format{sink.FormatSVG},
			expected: map[sink.Format]string{sink.FormatSVG: "out/story.svg"},
		},
		{
			name:     "fallback base",
			formats:  []sink.Format{sink.FormatJSON},
			expected: map[sink.Format]string{sink.FormatJSON: "step-2.json"},
		},
		{
			name:    "several formats share a base",
			output:  "story.svg",
			formats: []sink.Format{sink.FormatSVG, sink.FormatPNG},
			expected: map[sink.Format]string{
				sink.FormatSVG: "story.svg",
				sink.FormatPNG: "story.png",
			},
		},
		{
			name:    "graphviz does not clobber svg",
			output:  "story",
			formats: []sink.Format{sink.FormatSVG, sink.FormatGraphviz},
			expected: map[sink.Format]string{
				sink.FormatSVG:      "story.svg",
				sink.FormatGraphviz: "story.graphviz.svg",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := outputPaths(tt.output, "step-2", tt.formats)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("outputPaths (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSweepYears(t *testing.T) {
	tests := []struct {
		from, to, every int
		want            []int
	}{
		{1961, 1991, 10, []int{1961, 1971, 1981, 1991}},
		{1961, 1995, 10, []int{1961, 1971, 1981, 1991, 1995}},
		{2000, 2000, 5, []int{2000}},
		{2010, 2000, 5, []int{2000, 2005, 2010}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, sweepYears(tt.from, tt.to, tt.every)); diff != "" {
			t.Errorf("sweepYears(%d, %d, %d) (-want +got):\n%s", tt.from, tt.to, tt.every, diff)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	rec := func(country string, year int, v float64) dataset.Record {
		return dataset.Record{Country: country, Element: dataset.ElementProduction, Year: year, Value: v}
	}
	ds := story.NewDataset("cocoa.csv", []dataset.Record{
		rec("Côte d'Ivoire", 2023, 2_200_000),
		rec("Ghana", 2023, 650_000),
		rec("Brazil", 2023, 300_000),
		rec("Ghana", 1990, 290_000),
	}, story.DefaultYears)

	if err := writeSummary(&buf, ds, reference.Default(), 2023, 2); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	s := buf.String()
	for _, want := range []string{"Cocoa production 2023", "Côte d'Ivoire", "Ghana", "Countries"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Brazil") {
		t.Errorf("summary lists Brazil beyond --top 2:\n%s", s)
	}
}
