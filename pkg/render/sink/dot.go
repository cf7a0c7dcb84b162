package sink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/story"
)

// pointsPerInch converts pixel radii to Graphviz node sizes.
const pointsPerInch = 72

// ToDOT converts a bubble frame to Graphviz DOT source with every node
// pinned at its simulated position. Map frames emit their bubbles the same
// way, without outlines. Graphviz puts the origin bottom-left, so y is
// flipped.
func ToDOT(f story.Frame, ref *reference.Tables) string {
	if ref == nil {
		ref = reference.Default()
	}
	h := f.Canvas.Height

	var buf bytes.Buffer
	buf.WriteString("graph frame {\n")
	buf.WriteString("  layout=neato;\n")
	fmt.Fprintf(&buf, "  inputscale=%d;\n", pointsPerInch)
	buf.WriteString("  notranslate=true;\n")
	buf.WriteString("  bgcolor=\"#fbf7f1\";\n")
	fmt.Fprintf(&buf, "  bb=\"0,0,%.0f,%.0f\";\n", f.Canvas.Width, h)
	buf.WriteString("  node [shape=circle, fixedsize=true, style=filled, color=white, fontname=\"Helvetica\", fontsize=10];\n")
	fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", fmt.Sprintf("%s (%d)", f.Step.Headline, f.Year))
	buf.WriteString("\n")

	if f.Mode == story.ModeMap && f.Map != nil {
		for _, b := range f.Map.Bubbles {
			writeDOTNode(&buf, b.Country, "", b.X, h-b.Y, b.Radius, ref.Color(b.Continent), 1)
		}
	} else {
		for _, n := range f.Nodes {
			label := ""
			if n.Radius >= LabelMinRadius {
				label = shortName(n.ID, n.Radius)
			}
			opacity := 1.0
			if f.Muted(n) {
				opacity = MutedOpacity
			}
			writeDOTNode(&buf, n.ID, label, n.X, h-n.Y, n.Radius, ref.Color(n.Continent), opacity)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeDOTNode(buf *bytes.Buffer, id, label string, x, y, r float64, color string, opacity float64) {
	fill := color
	if opacity < 1 && len(color) == 7 {
		fill = fmt.Sprintf("%s%02x", color, int(opacity*255))
	}
	diameter := 2 * r / pointsPerInch
	fmt.Fprintf(buf, "  %q [pos=\"%.1f,%.1f!\", width=%.3f, label=%q, fillcolor=%q, tooltip=%q];\n",
		id, x, y, diameter, label, fill, id)
}

// RenderGraphviz lays out DOT source with neato and returns SVG.
func RenderGraphviz(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with a
// unitless one so the output scales like RenderSVG's.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[3]), 64)
	h, _ := strconv.ParseFloat(string(m[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
