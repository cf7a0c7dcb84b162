// Package render turns story frames into files.
//
// # Overview
//
// The story machine emits [story.Frame] values. This package and its
// subpackages draw them:
//
//   - [sink]: SVG, JSON and Graphviz output for bubble and map frames
//   - [trend]: a line chart of yearly production totals (gonum/plot)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	svg := sink.RenderSVG(frame)
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// [story.Frame]: github.com/matzehuels/harvest/pkg/story.Frame
// [sink]: github.com/matzehuels/harvest/pkg/render/sink
// [trend]: github.com/matzehuels/harvest/pkg/render/trend
package render
