package sink

import (
	"context"
	"fmt"
	"strings"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/render"
	"github.com/matzehuels/harvest/pkg/story"
)

// Format is an output format for a frame.
type Format string

const (
	FormatSVG      Format = "svg"
	FormatJSON     Format = "json"
	FormatDOT      Format = "dot"
	FormatGraphviz Format = "graphviz"
	FormatPNG      Format = "png"
	FormatPDF      Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatSVG, FormatJSON, FormatDOT, FormatGraphviz, FormatPNG, FormatPDF}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", herrors.New(herrors.ErrCodeInvalidFormat, "unknown output format %q (want one of %v)", s, Formats)
}

// Ext returns the file extension for f.
func (f Format) Ext() string {
	if f == FormatGraphviz {
		return "svg"
	}
	return string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG, FormatGraphviz:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/vnd.graphviz"
	}
}

// Options configure [Render].
type Options struct {
	Reference *reference.Tables
	// Scale is the PNG resolution factor.
	Scale    float64
	NoChrome bool
}

// Render draws f in the requested format.
func Render(ctx context.Context, f story.Frame, format Format, opts Options) ([]byte, error) {
	svgOpts := []SVGOption{WithReference(opts.Reference)}
	if opts.NoChrome {
		svgOpts = append(svgOpts, WithoutChrome())
	}

	switch format {
	case FormatSVG:
		return RenderSVG(f, svgOpts...), nil
	case FormatJSON:
		return RenderJSON(f)
	case FormatDOT:
		return []byte(ToDOT(f, opts.Reference)), nil
	case FormatGraphviz:
		return RenderGraphviz(ctx, ToDOT(f, opts.Reference))
	case FormatPNG:
		scale := opts.Scale
		if scale <= 0 {
			scale = 2
		}
		return render.ToPNG(ctx, RenderSVG(f, svgOpts...), scale)
	case FormatPDF:
		return render.ToPDF(ctx, RenderSVG(f, svgOpts...))
	default:
		return nil, fmt.Errorf("render %s: %w", format, herrors.New(herrors.ErrCodeInvalidFormat, "unsupported format"))
	}
}
