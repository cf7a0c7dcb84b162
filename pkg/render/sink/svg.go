package sink

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/geo"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/story"
	"github.com/matzehuels/harvest/pkg/units"
)

// Opacities for normal and muted bubbles.
const (
	BubbleOpacity = 0.9
	MutedOpacity  = 0.2
	mapOpacity    = 0.8
)

// LabelMinRadius is the smallest bubble that gets an inline country label.
const LabelMinRadius = 24

const svgCSS = `
    text { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; }
    .headline { font-size: 22px; font-weight: 700; fill: #3b2416; }
    .counter, .year { font-size: 13px; fill: #7a6252; }
    .total { font-size: 15px; fill: #3b2416; }
    .continent-label { font-size: 16px; font-weight: 600; fill: #5c4030; text-anchor: middle; }
    .node-label { font-size: 11px; fill: #2a1a10; text-anchor: middle; pointer-events: none; }
    .prompt { font-size: 14px; font-style: italic; fill: #7a6252; text-anchor: middle; }
    .country { fill: #efe6d8; stroke: #c9b8a3; stroke-width: 0.5; }
    .info rect { fill: #ffffff; stroke: #c9b8a3; }
    .info text { font-size: 12px; fill: #3b2416; }
    .info .info-title { font-size: 14px; font-weight: 700; }`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	ref    *reference.Tables
	chrome bool
}

// WithReference sets the colour table. The default is the embedded one.
func WithReference(t *reference.Tables) SVGOption { return func(r *svgRenderer) { r.ref = t } }

// WithoutChrome omits the headline, counter and prompt text.
func WithoutChrome() SVGOption { return func(r *svgRenderer) { r.chrome = false } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{chrome: true}
	for _, opt := range opts {
		opt(&r)
	}
	if r.ref == nil {
		r.ref = reference.Default()
	}
	return r
}

// RenderSVG draws a frame.
func RenderSVG(f story.Frame, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)
	w, h := f.Canvas.Width, f.Canvas.Height

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n", w, h, w, h)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", svgCSS)
	fmt.Fprintf(&buf, `  <rect width="%.1f" height="%.1f" fill="#fbf7f1"/>`+"\n", w, h)

	if f.Mode == story.ModeMap && f.Map != nil {
		r.renderMap(&buf, f)
	} else {
		r.renderBubbles(&buf, f)
	}
	if r.chrome {
		renderChrome(&buf, f)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r svgRenderer) renderBubbles(buf *bytes.Buffer, f story.Frame) {
	buf.WriteString(`  <g class="bubbles">` + "\n")
	for _, n := range f.Nodes {
		opacity := BubbleOpacity
		if f.Muted(n) {
			opacity = MutedOpacity
		}
		fmt.Fprintf(buf, `    <circle id="node-%s" cx="%.1f" cy="%.1f" r="%.1f" fill="%s" fill-opacity="%.2f" stroke="#ffffff" stroke-width="1.5">`,
			esc(slug(n.ID)), n.X, n.Y, n.Radius, r.ref.Color(n.Continent), opacity)
		fmt.Fprintf(buf, "<title>%s</title></circle>\n", esc(nodeTooltip(n)))
	}
	for _, n := range f.Nodes {
		if n.Radius < LabelMinRadius || f.Muted(n) {
			continue
		}
		fmt.Fprintf(buf, `    <text class="node-label" x="%.1f" y="%.1f">%s</text>`+"\n", n.X, n.Y+4, esc(shortName(n.ID, n.Radius)))
	}
	buf.WriteString("  </g>\n")

	for _, l := range f.Labels {
		fmt.Fprintf(buf, `  <text class="continent-label" x="%.1f" y="%.1f">%s</text>`+"\n", l.X, l.Y, esc(l.Text))
	}
}

func (r svgRenderer) renderMap(buf *bytes.Buffer, f story.Frame) {
	m := f.Map
	if !m.Ready {
		fmt.Fprintf(buf, `  <text class="prompt" x="%.1f" y="%.1f">Map geometry unavailable</text>`+"\n", f.Canvas.Width/2, f.Canvas.Height/2)
		return
	}
	t := m.Transform
	fmt.Fprintf(buf, `  <g class="map" transform="translate(%.2f,%.2f) scale(%.4f)">`+"\n", t.X, t.Y, t.K)
	for _, o := range m.Outlines {
		fmt.Fprintf(buf, `    <path class="country" d="%s"><title>%s</title></path>`+"\n", esc(o.D), esc(o.Name))
	}
	for _, b := range m.Bubbles {
		fmt.Fprintf(buf, `    <circle cx="%.1f" cy="%.1f" r="%.2f" fill="%s" fill-opacity="%.2f" stroke="#ffffff" stroke-width="%.2f">`,
			b.X, b.Y, b.Radius, r.ref.Color(b.Continent), mapOpacity, 0.5/t.K)
		fmt.Fprintf(buf, "<title>%s: %s tons</title></circle>\n", esc(b.DisplayName), units.FormatCommas(units.TonnesToUSTons(b.Production)))
	}
	buf.WriteString("  </g>\n")

	if f.Info != nil {
		renderInfo(buf, f.Canvas, *f.Info)
	}
}

func renderInfo(buf *bytes.Buffer, c bubble.Canvas, info geo.Info) {
	const width, lineHeight = 240.0, 18.0
	height := 40 + lineHeight*float64(len(info.Lines))
	x, y := c.Width-width-20, 20.0

	fmt.Fprintf(buf, `  <g class="info" transform="translate(%.1f,%.1f)">`+"\n", x, y)
	fmt.Fprintf(buf, `    <rect width="%.0f" height="%.0f" rx="6"/>`+"\n", width, height)
	fmt.Fprintf(buf, `    <text class="info-title" x="12" y="22">%s %s (%d)</text>`+"\n", esc(info.Flag), esc(info.DisplayName), info.Year)
	for i, line := range info.Lines {
		fmt.Fprintf(buf, `    <text x="12" y="%.0f">%s: %s</text>`+"\n", 44+lineHeight*float64(i), esc(line[0]), esc(line[1]))
	}
	buf.WriteString("  </g>\n")
}

func renderChrome(buf *bytes.Buffer, f story.Frame) {
	fmt.Fprintf(buf, `  <text class="counter" x="24" y="28">%s</text>`+"\n", esc(f.StepLabel()))
	fmt.Fprintf(buf, `  <text class="headline" x="24" y="56">%s</text>`+"\n", esc(f.Step.Headline))
	fmt.Fprintf(buf, `  <text class="year" x="24" y="78">%d</text>`+"\n", f.Year)
	fmt.Fprintf(buf, `  <text class="total" x="24" y="%.1f">Global production: %s tons</text>`+"\n",
		f.Canvas.Height-24, units.FormatTons(units.TonnesToUSTons(f.Total)))
	if f.Step.Prompt != "" {
		fmt.Fprintf(buf, `  <text class="prompt" x="%.1f" y="%.1f">%s</text>`+"\n", f.Canvas.Width/2, f.Canvas.Height-24, esc(f.Step.Prompt))
	}
}

func nodeTooltip(n bubble.Node) string {
	return fmt.Sprintf("%s\n%s tons (%s of global)", n.ID, units.FormatCommas(units.TonnesToUSTons(n.Production)), units.FormatPercent(n.Share))
}

// shortName trims a label to roughly what fits inside a circle of radius r.
func shortName(name string, r float64) string {
	limit := int(r / 4)
	runes := []rune(name)
	if len(runes) <= limit || limit < 4 {
		return name
	}
	return string(runes[:limit-1]) + "…"
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func esc(s string) string { return html.EscapeString(s) }
