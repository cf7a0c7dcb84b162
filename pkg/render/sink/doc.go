// Package sink renders story frames to output formats.
//
// Bubble frames (cluster, highlight and continent steps) draw one circle per
// country filled with its continent colour. Map frames draw country outlines
// under production bubbles, with the pan/zoom transform applied to the
// whole map group and the info panel on top.
//
// Supported formats:
//
//   - SVG via [RenderSVG], hand-written so positions are exactly the
//     simulator's
//   - JSON via [RenderJSON], the frame as served by the HTTP adapter
//   - DOT via [ToDOT] and SVG through Graphviz via [RenderGraphviz], with
//     every node pinned at its simulated position (neato, pos="x,y!")
//   - PNG and PDF via rsvg-convert on the SVG output
//
// [Dir] implements the story renderer interface by writing every frame it
// receives to a directory.
package sink
