package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	harvestio "github.com/matzehuels/harvest/pkg/io"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/story"
	"github.com/matzehuels/harvest/pkg/units"
)

const defaultSummaryTop = 15

// summaryCommand creates the summary command.
func (c *CLI) summaryCommand() *cobra.Command {
	var (
		source string
		year   int
		top    int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the top cocoa producers for a year",
		Example: `  harvest summary
  harvest summary --year 1990 --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer runner.Close()

			cfg := runner.Config
			if year == 0 {
				year = cfg.Dataset.EndYear
			}
			if err := herrors.ValidateYear(year, cfg.Dataset.StartYear, cfg.Dataset.EndYear); err != nil {
				return err
			}
			ds, err := c.loadDataset(ctx, runner, source)
			if err != nil {
				return err
			}
			return writeSummary(out, ds, runner.Ref, year, top)
		},
	}

	cmd.Flags().StringVarP(&source, "dataset", "d", "", "dataset path or URL (default from config)")
	cmd.Flags().IntVarP(&year, "year", "y", 0, "year to summarize (default: last supported year)")
	cmd.Flags().IntVarP(&top, "top", "n", defaultSummaryTop, "number of countries to list")

	return cmd
}

// writeSummary prints the global total and a ranked table for year.
func writeSummary(w io.Writer, ds *story.Dataset, ref *reference.Tables, year, top int) error {
	s := harvestio.NewSummary(ds.Source, ds.Agg, ds.Table, ref)

	var total harvestio.Total
	for _, t := range s.Totals {
		if t.Year == year {
			total = t
		}
	}
	if total.Countries == 0 {
		printWarning("No production recorded for %d", year)
		return nil
	}

	fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("Cocoa production %d", year)))
	printKeyValue("Global", units.FormatCommas(total.USTons)+" US tons")
	printKeyValue("Countries", strconv.Itoa(total.Countries))
	printKeyValue("Source", ds.Source)
	if n := ds.Agg.Dropped(); n > 0 {
		printKeyValue("Dropped", fmt.Sprintf("%d malformed rows", n))
	}

	var rows [][]string
	for _, r := range s.Rows {
		if r.Year != year {
			continue
		}
		if top > 0 && r.Rank > top {
			break
		}
		m := units.Convert(r.Production, r.AreaHarvested, r.Yield)
		yield := "n/a"
		if m.HasYield {
			yield = units.FormatDecimal(m.LbPerAcre)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			ref.Flag(r.Country) + " " + r.Country,
			r.Continent,
			units.FormatCommas(m.USTons),
			units.FormatPercent(r.Share),
			yield,
		})
	}

	t := newTable(
		[]string{"#", "Country", "Continent", "US tons", "Share", "lb/acre"},
		rows,
		func(row int) bool { return row >= 2 },
	)
	fmt.Fprintln(w, t.Render())
	return nil
}
