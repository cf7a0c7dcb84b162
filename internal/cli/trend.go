package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/matzehuels/harvest/pkg/render/trend"
)

// trendOpts holds the command-line flags for the trend command.
type trendOpts struct {
	output    string
	format    string
	title     string
	countries string
	width     float64 // inches
	height    float64 // inches
	source    string
}

// trendCommand creates the trend command.
func (c *CLI) trendCommand() *cobra.Command {
	d := trend.DefaultOptions()
	opts := trendOpts{
		output: "trend.png",
		title:  d.Title,
		width:  float64(d.Width / vg.Inch),
		height: float64(d.Height / vg.Inch),
	}

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Plot global cocoa production over time",
		Example: `  harvest trend
  harvest trend --countries "Côte d'Ivoire,Ghana,Indonesia" -o producers.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTrend(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, "output file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "png, svg or pdf (default from the output extension)")
	cmd.Flags().StringVar(&opts.title, "title", opts.title, "chart title")
	cmd.Flags().StringVar(&opts.countries, "countries", "", "countries to plot next to the world total (comma-separated)")
	cmd.Flags().Float64Var(&opts.width, "width", opts.width, "chart width in inches")
	cmd.Flags().Float64Var(&opts.height, "height", opts.height, "chart height in inches")
	cmd.Flags().StringVarP(&opts.source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

func (c *CLI) runTrend(ctx context.Context, opts trendOpts) error {
	format := opts.format
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(opts.output), ".")
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	ds, err := c.loadDataset(ctx, runner, opts.source)
	if err != nil {
		return err
	}
	countries := parseList(opts.countries)
	data, err := trend.Render(ds.Agg, format, trend.Options{
		Title:     opts.title,
		Countries: countries,
		Width:     vg.Length(opts.width) * vg.Inch,
		Height:    vg.Length(opts.height) * vg.Inch,
		Reference: runner.Ref,
	})
	if err != nil {
		return err
	}
	if err := writeArtifact(opts.output, data); err != nil {
		return err
	}

	printSuccess("Plotted %d years", len(ds.Agg.Years()))
	for _, name := range countries {
		if !runner.Ref.Known(name) {
			printWarning("%s is not in the reference tables", name)
		}
	}
	printFile(opts.output)
	return nil
}
