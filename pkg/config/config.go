// Package config loads harvest settings.
//
// Settings are resolved in order: built-in defaults, then an optional TOML
// file (harvest.toml in the working directory, or --config), then
// HARVEST_-prefixed environment variables, then validation. The story
// steps can only come from the file:
//
//	[dataset]
//	source = "data/cocoa_data.csv"
//
//	[[steps]]
//	id = "cluster"
//	layout = "cluster"
//	headline = "WHERE DOES CHOCOLATE COME FROM?"
//	year = 2023
//
// Environment overrides use the section and key, for example
// HARVEST_DATASET_SOURCE or HARVEST_CACHE_BACKEND.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/matzehuels/harvest/pkg/aggregate"
	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/cache"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/force"
	"github.com/matzehuels/harvest/pkg/geo"
	"github.com/matzehuels/harvest/pkg/story"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "harvest.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HARVEST_"

// DefaultGeometryURL is Natural Earth's 1:110m country outlines.
const DefaultGeometryURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"

// Config is the complete harvest configuration.
type Config struct {
	Dataset Dataset      `toml:"dataset" envPrefix:"DATASET_"`
	Canvas  Canvas       `toml:"canvas" envPrefix:"CANVAS_"`
	Bubble  Bubble       `toml:"bubble" envPrefix:"BUBBLE_"`
	Force   Force        `toml:"force" envPrefix:"FORCE_"`
	Map     Map          `toml:"map" envPrefix:"MAP_"`
	Cache   Cache        `toml:"cache" envPrefix:"CACHE_"`
	Server  Server       `toml:"server" envPrefix:"SERVER_"`
	Steps   []story.Step `toml:"steps"`

	// Path is the file the config was read from, empty for defaults only.
	Path string `toml:"-"`
}

// Dataset locates the production data.
type Dataset struct {
	Source    string `toml:"source" env:"SOURCE"`
	StartYear int    `toml:"start_year" env:"START_YEAR"`
	EndYear   int    `toml:"end_year" env:"END_YEAR"`
}

// Canvas is the initial drawing size and the random seed.
type Canvas struct {
	Width  float64 `toml:"width" env:"WIDTH"`
	Height float64 `toml:"height" env:"HEIGHT"`
	Seed   uint64  `toml:"seed" env:"SEED"`
}

// Bubble tunes node construction.
type Bubble struct {
	TopK      int     `toml:"top_k" env:"TOP_K"`
	MinRadius float64 `toml:"min_radius" env:"MIN_RADIUS"`
	MaxRadius float64 `toml:"max_radius" env:"MAX_RADIUS"`
	Jitter    float64 `toml:"jitter" env:"JITTER"`
}

// Force tunes the layout simulation.
type Force struct {
	Ticks             int     `toml:"ticks" env:"TICKS"`
	Margin            float64 `toml:"margin" env:"MARGIN"`
	Padding           float64 `toml:"padding" env:"PADDING"`
	ClusterStrength   float64 `toml:"cluster_strength" env:"CLUSTER_STRENGTH"`
	AnchorStrength    float64 `toml:"anchor_strength" env:"ANCHOR_STRENGTH"`
	HighlightOffset   float64 `toml:"highlight_offset" env:"HIGHLIGHT_OFFSET"`
	VelocityDecay     float64 `toml:"velocity_decay" env:"VELOCITY_DECAY"`
	CollideIterations int     `toml:"collide_iterations" env:"COLLIDE_ITERATIONS"`
	SettleIterations  int     `toml:"settle_iterations" env:"SETTLE_ITERATIONS"`
	AlphaMin          float64 `toml:"alpha_min" env:"ALPHA_MIN"`
}

// Map configures the geographic overlay.
type Map struct {
	Geometry     string  `toml:"geometry" env:"GEOMETRY"`
	NameProperty string  `toml:"name_property" env:"NAME_PROPERTY"`
	Padding      float64 `toml:"padding" env:"PADDING"`
	MinRadius    float64 `toml:"min_radius" env:"MIN_RADIUS"`
	MaxRadius    float64 `toml:"max_radius" env:"MAX_RADIUS"`
	MinZoom      float64 `toml:"min_zoom" env:"MIN_ZOOM"`
	MaxZoom      float64 `toml:"max_zoom" env:"MAX_ZOOM"`
}

// Cache selects the download and artifact cache.
type Cache struct {
	Backend  string        `toml:"backend" env:"BACKEND"`
	Dir      string        `toml:"dir" env:"DIR"`
	RedisURL string        `toml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `toml:"ttl" env:"TTL"`
}

// Server configures the HTTP adapter.
type Server struct {
	Addr        string        `toml:"addr" env:"ADDR"`
	SessionTTL  time.Duration `toml:"session_ttl" env:"SESSION_TTL"`
	MaxSessions int           `toml:"max_sessions" env:"MAX_SESSIONS"`
	Watch       bool          `toml:"watch" env:"WATCH"`
}

// Default returns the built-in configuration.
func Default() *Config {
	b := bubble.DefaultConfig()
	f := force.DefaultOptions()
	m := geo.DefaultOptions()
	return &Config{
		Dataset: Dataset{Source: "data/cocoa_data.csv", StartYear: story.StartYear, EndYear: story.EndYear},
		Canvas:  Canvas{Width: 1200, Height: 800, Seed: 1},
		Bubble:  Bubble{TopK: b.TopK, MinRadius: b.MinRadius, MaxRadius: b.MaxRadius, Jitter: b.Jitter},
		Force: Force{
			Ticks:             f.Ticks,
			Margin:            f.Margin,
			Padding:           f.Padding,
			ClusterStrength:   f.ClusterStrength,
			AnchorStrength:    f.AnchorStrength,
			HighlightOffset:   f.HighlightOffset,
			VelocityDecay:     f.VelocityDecay,
			CollideIterations: f.CollideIterations,
			SettleIterations:  f.SettleIterations,
			AlphaMin:          f.AlphaMin,
		},
		Map: Map{
			Geometry:     DefaultGeometryURL,
			NameProperty: geo.DefaultNameProperty,
			Padding:      m.Padding,
			MinRadius:    m.MinRadius,
			MaxRadius:    m.MaxRadius,
			MinZoom:      m.MinZoom,
			MaxZoom:      m.MaxZoom,
		},
		Cache:  Cache{Backend: cache.BackendFile, TTL: 7 * 24 * time.Hour},
		Server: Server{Addr: ":8080", SessionTTL: 30 * time.Minute, MaxSessions: 1024},
		Steps:  story.DefaultSteps(),
	}
}

// Load resolves the configuration. An empty path reads DefaultFile when it
// exists; a named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.readEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return herrors.Wrap(herrors.ErrCodeInvalidPath, err, "config file %s", path)
	}

	// Steps replace the defaults wholesale rather than merging field by field.
	defaults := c.Steps
	c.Steps = nil
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return herrors.Wrap(herrors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return herrors.New(herrors.ErrCodeInvalidInput, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if len(c.Steps) == 0 {
		c.Steps = defaults
	}
	c.Path = path
	return nil
}

func (c *Config) readEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Dataset.Source == "" {
		return herrors.New(herrors.ErrCodeInvalidPath, "dataset.source is empty")
	}
	if c.Dataset.StartYear > c.Dataset.EndYear {
		return herrors.New(herrors.ErrCodeInvalidYear, "dataset.start_year %d is after end_year %d", c.Dataset.StartYear, c.Dataset.EndYear)
	}
	if err := herrors.ValidateCanvas(c.Canvas.Width, c.Canvas.Height); err != nil {
		return err
	}
	if c.Bubble.TopK <= 0 {
		return herrors.New(herrors.ErrCodeInvalidInput, "bubble.top_k must be positive")
	}
	if c.Bubble.MinRadius <= 0 || c.Bubble.MaxRadius < c.Bubble.MinRadius {
		return herrors.New(herrors.ErrCodeInvalidInput, "bubble radii must satisfy 0 < min_radius <= max_radius")
	}
	if c.Force.Ticks <= 0 || c.Force.CollideIterations <= 0 {
		return herrors.New(herrors.ErrCodeInvalidInput, "force.ticks and force.collide_iterations must be positive")
	}
	if c.Force.Margin < 0 || c.Force.Padding < 0 || c.Force.SettleIterations < 0 {
		return herrors.New(herrors.ErrCodeInvalidInput, "force margin, padding and settle_iterations cannot be negative")
	}
	if c.Force.AlphaMin <= 0 || c.Force.AlphaMin >= 1 {
		return herrors.New(herrors.ErrCodeInvalidInput, "force.alpha_min must be in (0, 1)")
	}
	if c.Map.MinRadius < 0 || c.Map.MaxRadius < c.Map.MinRadius {
		return herrors.New(herrors.ErrCodeInvalidInput, "map radii must satisfy 0 <= min_radius <= max_radius")
	}
	if c.Map.MinZoom <= 0 || c.Map.MaxZoom < c.Map.MinZoom {
		return herrors.New(herrors.ErrCodeInvalidInput, "map zoom limits must satisfy 0 < min_zoom <= max_zoom")
	}
	if c.Map.Geometry != "" && herrors.IsURL(c.Map.Geometry) {
		if err := herrors.ValidateURL(c.Map.Geometry); err != nil {
			return err
		}
	}
	switch c.Cache.Backend {
	case "", cache.BackendFile, cache.BackendNone:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return herrors.New(herrors.ErrCodeInvalidInput, "cache.redis_url is required for the redis backend")
		}
	default:
		return herrors.New(herrors.ErrCodeInvalidInput, "cache.backend %q is not one of file, redis, none", c.Cache.Backend)
	}
	for i, s := range c.Steps {
		if k, err := force.ParseKind(string(s.Layout)); err == nil {
			c.Steps[i].Layout = k
		}
	}
	return story.ValidateSteps(c.Steps, c.Years())
}

// Years returns the supported year range.
func (c *Config) Years() aggregate.YearRange {
	return aggregate.YearRange{Start: c.Dataset.StartYear, End: c.Dataset.EndYear}
}

// Story converts the settings into a story machine configuration.
func (c *Config) Story() story.Config {
	return story.Config{
		Steps: c.Steps,
		Years: c.Years(),
		Bubble: bubble.Config{
			TopK:      c.Bubble.TopK,
			MinRadius: c.Bubble.MinRadius,
			MaxRadius: c.Bubble.MaxRadius,
			Jitter:    c.Bubble.Jitter,
		},
		Force: force.Options{
			Ticks:             c.Force.Ticks,
			Margin:            c.Force.Margin,
			Padding:           c.Force.Padding,
			ClusterStrength:   c.Force.ClusterStrength,
			AnchorStrength:    c.Force.AnchorStrength,
			HighlightOffset:   c.Force.HighlightOffset,
			VelocityDecay:     c.Force.VelocityDecay,
			CollideIterations: c.Force.CollideIterations,
			SettleIterations:  c.Force.SettleIterations,
			AlphaMin:          c.Force.AlphaMin,
			Seed:              c.Canvas.Seed,
		},
		Map: geo.Options{
			Padding:   c.Map.Padding,
			MinRadius: c.Map.MinRadius,
			MaxRadius: c.Map.MaxRadius,
			MinZoom:   c.Map.MinZoom,
			MaxZoom:   c.Map.MaxZoom,
		},
		Canvas: bubble.Canvas{Width: c.Canvas.Width, Height: c.Canvas.Height},
		Seed:   c.Canvas.Seed,
	}
}

// CacheOptions converts the cache section for cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{Backend: c.Cache.Backend, Dir: c.Cache.Dir, RedisURL: c.Cache.RedisURL}
}
