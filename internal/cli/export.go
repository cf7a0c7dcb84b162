package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	harvestio "github.com/matzehuels/harvest/pkg/io"
)

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var output, source string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export yearly totals and country rankings as XLSX or JSON",
		Example: `  harvest export -o cocoa.xlsx
  harvest export -o cocoa.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), output, source)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "cocoa.xlsx", "output file (.xlsx or .json)")
	cmd.Flags().StringVarP(&source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, output, source string) error {
	ext := strings.ToLower(filepath.Ext(output))
	if ext != ".xlsx" && ext != ".json" {
		return herrors.New(herrors.ErrCodeInvalidFormat, "export writes .xlsx or .json, not %q", ext)
	}

	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	ds, err := c.loadDataset(ctx, runner, source)
	if err != nil {
		return err
	}
	s := harvestio.NewSummary(ds.Source, ds.Agg, ds.Table, runner.Ref)

	if ext == ".json" {
		err = harvestio.ExportJSON(s, output)
	} else {
		err = harvestio.ExportXLSX(s, output)
	}
	if err != nil {
		return err
	}

	printSuccess("Exported %s rows over %d years", humanize.Comma(int64(len(s.Rows))), len(s.Totals))
	printFile(output)
	return nil
}
