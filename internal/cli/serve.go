package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/harvest/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr   string
		watch  bool
		source string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the story as a JSON and image API",
		Long: `Serve the story over HTTP.

Every client creates a session (POST /sessions) and sends scroll, slide,
zoom and select events to it. Frames come back as JSON or as SVG, PNG,
PDF or DOT from /sessions/{id}/frame.{format}. GET /render serves cached
single-step renders.`,
		Example: `  harvest serve --addr :8080
  harvest serve --dataset data/cocoa.csv --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, watch, cmd.Flags().Changed("watch"), source)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload a local dataset file when it changes")
	cmd.Flags().StringVarP(&source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, watch, watchSet bool, source string) error {
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	cfg := runner.Config
	if addr == "" {
		addr = cfg.Server.Addr
	}
	if !watchSet {
		watch = cfg.Server.Watch
	}

	// Warm the dataset so the first session does not wait on it.
	runner.DatasetFuture(ctx, source)

	srv := server.NewFromConfig(runner, source)
	return srv.Run(ctx, server.Options{
		Addr:  addr,
		Watch: watch,
		Ready: func(addr string) { printSuccess("Listening on %s", addr) },
	})
}
