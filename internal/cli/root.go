package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/harvest/pkg/buildinfo"
)

// SetVersion overrides the build information reported by `harvest version`.
// The main package calls it when values are injected via ldflags.
func SetVersion(v, commit, date string) {
	if v != "" {
		buildinfo.Version = v
	}
	if commit != "" {
		buildinfo.Commit = commit
	}
	if date != "" {
		buildinfo.Date = date
	}
}

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and reference data versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
