package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/pipeline"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

// mapOpts holds the command-line flags for the map command.
type mapOpts struct {
	output  string
	format  string
	from    int
	to      int
	every   int
	country string
	width   float64
	height  float64
	source  string
}

// mapCommand creates the map command.
func (c *CLI) mapCommand() *cobra.Command {
	opts := mapOpts{every: 10}

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Sweep the world map's year slider and write one frame per year",
		Example: `  harvest map -o map-frames
  harvest map --from 1990 --to 2020 --every 5 --country "Côte d'Ivoire" -f png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMap(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "map", "output directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(sink.FormatSVG), "output format: svg, json, dot, graphviz, png, pdf")
	cmd.Flags().IntVar(&opts.from, "from", 0, "first year (default: first supported year)")
	cmd.Flags().IntVar(&opts.to, "to", 0, "last year (default: last supported year)")
	cmd.Flags().IntVar(&opts.every, "every", opts.every, "years between frames")
	cmd.Flags().StringVar(&opts.country, "country", "", "keep the info panel open for a country")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "canvas width (default from config)")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "canvas height (default from config)")
	cmd.Flags().StringVarP(&opts.source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

func (c *CLI) runMap(ctx context.Context, opts mapOpts) error {
	format, err := sink.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.every <= 0 {
		return herrors.New(herrors.ErrCodeInvalidInput, "--every must be positive")
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	cfg := runner.Config
	mapStep := -1
	for i, s := range cfg.Steps {
		if s.Mode() == story.ModeMap {
			mapStep = i
			break
		}
	}
	if mapStep < 0 {
		return herrors.New(herrors.ErrCodeInvalidStep, "no map step configured")
	}
	if opts.from == 0 {
		opts.from = cfg.Dataset.StartYear
	}
	if opts.to == 0 {
		opts.to = cfg.Dataset.EndYear
	}
	for _, y := range []int{opts.from, opts.to} {
		if err := herrors.ValidateYear(y, cfg.Dataset.StartYear, cfg.Dataset.EndYear); err != nil {
			return err
		}
	}
	years := sweepYears(opts.from, opts.to, opts.every)
	if !cfg.Steps[mapStep].Slider {
		years = []int{cfg.Steps[mapStep].Year}
	}

	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	m, err := runner.NewMachine(ctx, opts.source, story.WithRenderer(newSpinner(ctx, os.Stderr)))
	if err != nil {
		return err
	}
	if opts.width > 0 || opts.height > 0 {
		if _, err := m.Resize(ctx, opts.width, opts.height); err != nil {
			return err
		}
	}
	if _, err := m.Start(ctx); err != nil {
		return err
	}
	frame, err := m.SetStep(ctx, mapStep)
	if err != nil {
		return err
	}
	if frame.Map == nil || !frame.Map.Ready {
		printWarning("Map geometry unavailable; frames show bubbles only")
	}

	sinkOpts := sink.Options{Reference: runner.Ref, Scale: pipeline.DefaultScale}
	var written []string
	for _, y := range years {
		if frame.Step.Slider {
			if frame, err = m.SetYear(ctx, y); err != nil {
				return err
			}
		}
		if opts.country != "" {
			if frame, err = m.SelectCountry(ctx, opts.country); err != nil {
				return err
			}
		}
		data, err := sink.Render(ctx, frame, format, sinkOpts)
		if err != nil {
			return err
		}
		name := filepath.Join(opts.output, sink.FrameName(frame, format))
		if err := writeArtifact(name, data); err != nil {
			return err
		}
		written = append(written, name)
	}

	printSuccess("Rendered %d map frames (%d-%d)", len(written), years[0], years[len(years)-1])
	for _, name := range written {
		printFile(name)
	}
	prog.done("map complete")
	return nil
}

// sweepYears returns from, from+every, ... and always ends on to.
func sweepYears(from, to, every int) []int {
	if from > to {
		from, to = to, from
	}
	var years []int
	for y := from; y < to; y += every {
		years = append(years, y)
	}
	return append(years, to)
}
