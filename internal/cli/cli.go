// Package cli implements the harvest command-line interface.
//
// Every command resolves the configuration (defaults, harvest.toml or
// --config, HARVEST_ environment overrides), opens the configured cache and
// drives the shared pipeline runner:
//   - summary: print the top producers for a year
//   - render: write story frames as SVG, JSON, DOT, PNG or PDF
//   - map: sweep the map step's slider over a year range
//   - trend: plot production over time
//   - export: write the aggregated dataset as XLSX or JSON
//   - play: walk the story interactively in the terminal
//   - serve: run the HTTP story API
//   - cache: inspect or clear the cache
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/harvest/pkg/buildinfo"
	"github.com/matzehuels/harvest/pkg/cache"
	"github.com/matzehuels/harvest/pkg/config"
	"github.com/matzehuels/harvest/pkg/observability"
	"github.com/matzehuels/harvest/pkg/pipeline"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "harvest"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogFatal = log.FatalLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Harvest tells the story of the world's cocoa production",
		Long:         `Harvest turns FAOSTAT cocoa production data into a scroll-driven story: clustered bubbles, a highlight of the top producers, a continent split and a world map with a year slider.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			hooks := logHooks{c.Logger}
			observability.SetStoryHooks(hooks)
			observability.SetCacheHooks(hooks)
			observability.SetHTTPHooks(hooks)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the download and artifact cache")

	// Register all subcommands
	root.AddCommand(c.summaryCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.mapCommand())
	root.AddCommand(c.trendCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.playCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// loadConfig resolves the configuration for the --config flag.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		c.Logger.Debug("loaded config", "path", cfg.Path)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	ch, err := c.newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cfg, ch, nil, c.Logger), nil
}

// newCache opens the configured backend. A file cache that cannot be
// created degrades to no caching; other backends must open.
func (c *CLI) newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	ch, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		if cfg.Cache.Backend == cache.BackendRedis {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return ch, nil
}

// loadDataset waits for the dataset behind source with a spinner on stderr.
func (c *CLI) loadDataset(ctx context.Context, runner *pipeline.Runner, source string) (*story.Dataset, error) {
	sp := newSpinner(ctx, os.Stderr)
	sp.Loading(story.LoadingMessage)
	ds, err := runner.LoadDataset(ctx, source)
	if err != nil {
		sp.Failed(story.FailureMessage)
		return nil, err
	}
	sp.Stop()
	if n := ds.Agg.Dropped(); n > 0 {
		c.Logger.Debug("dropped malformed records", "count", n)
	}
	return ds, nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) ([]sink.Format, error) {
	if s == "" {
		return []sink.Format{sink.FormatSVG}, nil
	}
	var formats []sink.Format
	for _, part := range strings.Split(s, ",") {
		f, err := sink.ParseFormat(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// parseList splits a comma-separated flag, dropping empty items.
func parseList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
