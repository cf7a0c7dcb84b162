package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/pipeline"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string  // output file, base path, or directory with --all
	formats  string  // comma-separated formats
	step     int     // 1-based step number
	all      bool    // walk every step
	year     int     // slider year on slider steps
	country  string  // open the info panel on map steps
	width    float64 // canvas width in pixels
	height   float64 // canvas height in pixels
	noChrome bool    // drop headline, counter and prompt
	scale    float64 // PNG resolution factor
	refresh  bool    // ignore cached artifacts
	source   string  // dataset override
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render story frames to SVG, JSON, DOT, PNG or PDF",
		Long: `Render one story step, or walk every step with --all.

Steps are numbered from 1. A year only applies to slider steps and a
country only to map steps.`,
		Example: `  harvest render --step 2 -o highlight.svg
  harvest render --step 4 --year 1990 --country Ghana -f svg,json
  harvest render --all -o frames -f png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := parseFormats(opts.formats)
			if err != nil {
				return err
			}
			if opts.all {
				if len(formats) != 1 {
					return herrors.New(herrors.ErrCodeInvalidFormat, "--all takes exactly one format")
				}
				return c.runRenderAll(cmd.Context(), opts, formats[0])
			}
			return c.runRender(cmd.Context(), opts, formats)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format), base path (several), or directory (--all)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), json, dot, graphviz, png, pdf (comma-separated)")
	cmd.Flags().IntVarP(&opts.step, "step", "s", 1, "step number, starting at 1")
	cmd.Flags().BoolVar(&opts.all, "all", false, "render every step into a directory")
	cmd.Flags().IntVarP(&opts.year, "year", "y", 0, "slider year (slider steps only)")
	cmd.Flags().StringVar(&opts.country, "country", "", "open the info panel for a country (map steps only)")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "canvas width (default from config)")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "canvas height (default from config)")
	cmd.Flags().BoolVar(&opts.noChrome, "no-chrome", false, "omit headline, counter and prompt")
	cmd.Flags().Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "PNG resolution factor")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached artifacts")
	cmd.Flags().StringVarP(&opts.source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

// runRender renders a single step through the cached pipeline.
func (c *CLI) runRender(ctx context.Context, opts renderOpts, formats []sink.Format) error {
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	sp := newSpinner(ctx, os.Stderr)
	sp.Loading(story.LoadingMessage)
	res, err := runner.Execute(ctx, pipeline.Options{
		Source:   opts.source,
		Step:     opts.step - 1,
		Year:     opts.year,
		Width:    opts.width,
		Height:   opts.height,
		Country:  opts.country,
		Formats:  formats,
		Scale:    opts.scale,
		NoChrome: opts.noChrome,
		Refresh:  opts.refresh,
	})
	if err != nil {
		if herrors.Is(err, herrors.ErrCodeDatasetLoad) {
			sp.Failed(story.FailureMessage)
		} else {
			sp.Stop()
		}
		return err
	}
	sp.Stop()

	paths := outputPaths(opts.output, fmt.Sprintf("step-%d", opts.step), formats)
	for _, f := range formats {
		if err := writeArtifact(paths[f], res.Artifacts[f]); err != nil {
			return err
		}
	}

	printSuccess("Rendered step %d", opts.step)
	if res.Frame != nil {
		bubbles := 0
		if res.Frame.Map != nil {
			bubbles = len(res.Frame.Map.Bubbles)
		}
		printStats(len(res.Frame.Nodes), bubbles, false)
	} else {
		printStats(0, 0, true)
	}
	for _, f := range formats {
		printFile(paths[f])
	}
	prog.done("render complete")
	return nil
}

// runRenderAll drives one machine through every step, writing a frame per
// transition into a directory.
func (c *CLI) runRenderAll(ctx context.Context, opts renderOpts, format sink.Format) error {
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	dirPath := opts.output
	if dirPath == "" {
		dirPath = "frames"
	}
	dir, err := sink.NewDir(ctx, dirPath, format, sink.Options{
		Reference: runner.Ref,
		Scale:     opts.scale,
		NoChrome:  opts.noChrome,
	}, c.Logger)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	sp := newSpinner(ctx, os.Stderr)
	m, err := runner.NewMachine(ctx, opts.source, story.WithRenderer(fanout{sp, dir}))
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
	for i := 1; i < len(m.Steps()); i++ {
		if _, err := m.SetStep(ctx, i); err != nil {
			return err
		}
	}
	if err := dir.Err(); err != nil {
		return err
	}

	printSuccess("Rendered %d frames", len(dir.Written()))
	for _, name := range dir.Written() {
		printFile(name)
	}
	prog.done("render complete")
	return nil
}

// outputPaths maps each format to a file. A single format writes to output
// as given; several formats share output as a base path.
func outputPaths(output, fallback string, formats []sink.Format) map[sink.Format]string {
	paths := make(map[sink.Format]string, len(formats))
	if len(formats) == 1 && output != "" {
		paths[formats[0]] = output
		return paths
	}
	base := output
	if base == "" {
		base = fallback
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	used := make(map[string]bool, len(formats))
	for _, f := range formats {
		p := base + "." + f.Ext()
		if used[p] {
			// graphviz and svg share an extension
			p = base + "." + string(f) + "." + f.Ext()
		}
		used[p] = true
		paths[f] = p
	}
	return paths
}

// writeArtifact writes data, creating parent directories.
func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
