// Package trend plots yearly cocoa production as a line chart.
package trend

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/harvest/pkg/aggregate"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/units"
)

// Options configure a chart.
type Options struct {
	Title string
	// Countries adds one line per named country next to the global total.
	Countries []string
	Width     vg.Length
	Height    vg.Length
	Reference *reference.Tables
}

// DefaultOptions returns a 10x5 inch chart of the global total.
func DefaultOptions() Options {
	return Options{Title: "Global cocoa production", Width: 10 * vg.Inch, Height: 5 * vg.Inch}
}

// Formats gonum can encode.
var Formats = []string{"png", "svg", "pdf"}

// Plot builds the chart. Values are in millions of US tons.
func Plot(agg *aggregate.Aggregate, opts Options) (*plot.Plot, error) {
	if agg == nil || agg.Empty() {
		return nil, herrors.New(herrors.ErrCodeInvalidInput, "no production data to plot")
	}
	if opts.Reference == nil {
		opts.Reference = reference.Default()
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Production (million US tons)"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	series := agg.Series()
	total := make(plotter.XYs, len(series))
	for i, s := range series {
		total[i].X = float64(s.Year)
		total[i].Y = millions(s.Total)
	}
	line, err := plotter.NewLine(total)
	if err != nil {
		return nil, fmt.Errorf("total line: %w", err)
	}
	line.Color = color.RGBA{R: 0x5c, G: 0x40, B: 0x30, A: 255}
	line.Width = vg.Points(2)
	p.Add(line)
	p.Legend.Add("World", line)

	for _, country := range opts.Countries {
		var pts plotter.XYs
		for _, y := range agg.Years() {
			if v, ok := agg.Production(country, y); ok {
				pts = append(pts, plotter.XY{X: float64(y), Y: millions(v)})
			}
		}
		if len(pts) == 0 {
			continue
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", country, err)
		}
		l.Color = hexColor(opts.Reference.Color(opts.Reference.Continent(country)))
		l.Width = vg.Points(1.5)
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
		p.Legend.Add(country, l)
	}
	return p, nil
}

// Render encodes the chart as png, svg or pdf.
func Render(agg *aggregate.Aggregate, format string, opts Options) ([]byte, error) {
	format = strings.ToLower(format)
	if !isFormat(format) {
		return nil, herrors.New(herrors.ErrCodeInvalidFormat, "unsupported chart format %q (want one of %v)", format, Formats)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}
	p, err := Plot(agg, opts)
	if err != nil {
		return nil, err
	}
	w, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

func isFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

func millions(tonnes float64) float64 { return units.TonnesToUSTons(tonnes) / 1e6 }

func hexColor(s string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Gray{Y: 0x99}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
