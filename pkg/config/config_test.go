package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/harvest/pkg/cache"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/force"
	"github.com/matzehuels/harvest/pkg/story"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvest.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	sc := cfg.Story()
	if diff := cmp.Diff(story.DefaultSteps(), sc.Steps); diff != "" {
		t.Errorf("default steps (-want +got):\n%s", diff)
	}
	wantForce := force.DefaultOptions()
	wantForce.Seed = cfg.Canvas.Seed
	if sc.Force != wantForce {
		t.Errorf("force options = %+v, want defaults", sc.Force)
	}
	if sc.Years != story.DefaultYears {
		t.Errorf("years = %+v", sc.Years)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("Path = %q, want empty", cfg.Path)
	}
	if _, err := Load("missing.toml"); !herrors.Is(err, herrors.ErrCodeInvalidPath) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
[dataset]
source = "https://example.com/cocoa.csv"

[bubble]
top_k = 20

[cache]
backend = "none"
ttl = "1h"

[[steps]]
id = "intro"
layout = "cluster"
headline = "COCOA"
year = 2020

[[steps]]
id = "explore"
layout = "timeline"
headline = "MAP"
year = 1990
slider = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Path != path || cfg.Dataset.Source != "https://example.com/cocoa.csv" {
		t.Errorf("dataset = %+v (path %q)", cfg.Dataset, cfg.Path)
	}
	if cfg.Bubble.TopK != 20 || cfg.Bubble.MaxRadius != Default().Bubble.MaxRadius {
		t.Errorf("bubble = %+v, want top_k override only", cfg.Bubble)
	}
	if cfg.Cache.Backend != cache.BackendNone || cfg.Cache.TTL != time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	want := []story.Step{
		{ID: "intro", Layout: force.Cluster, Headline: "COCOA", Year: 2020},
		{ID: "explore", Layout: force.Map, Headline: "MAP", Year: 1990, Slider: true},
	}
	if diff := cmp.Diff(want, cfg.Steps); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "[bubble]\ntopk = 3\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "bubble.topk") {
		t.Errorf("Load() error = %v, want unknown key", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HARVEST_DATASET_SOURCE", "/tmp/cocoa.xlsx")
	t.Setenv("HARVEST_FORCE_TICKS", "120")
	t.Setenv("HARVEST_CACHE_BACKEND", "redis")
	t.Setenv("HARVEST_CACHE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("HARVEST_SERVER_SESSION_TTL", "5m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Dataset.Source != "/tmp/cocoa.xlsx" || cfg.Force.Ticks != 120 {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Dataset, cfg.Force)
	}
	if got := cfg.CacheOptions(); got.Backend != cache.BackendRedis || got.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("CacheOptions() = %+v", got)
	}
	if cfg.Server.SessionTTL != 5*time.Minute {
		t.Errorf("session ttl = %v", cfg.Server.SessionTTL)
	}
}

func TestEnvParseError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HARVEST_FORCE_TICKS", "many")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Errorf("Load() error = %v, want parse env prefix", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   herrors.Code
	}{
		{"years reversed", func(c *Config) { c.Dataset.StartYear = 2030 }, herrors.ErrCodeInvalidYear},
		{"zero canvas", func(c *Config) { c.Canvas.Width = 0 }, herrors.ErrCodeInvalidCanvas},
		{"no nodes", func(c *Config) { c.Bubble.TopK = 0 }, herrors.ErrCodeInvalidInput},
		{"radii swapped", func(c *Config) { c.Bubble.MaxRadius = 1 }, herrors.ErrCodeInvalidInput},
		{"alpha", func(c *Config) { c.Force.AlphaMin = 0 }, herrors.ErrCodeInvalidInput},
		{"zoom", func(c *Config) { c.Map.MaxZoom = 0.5 }, herrors.ErrCodeInvalidInput},
		{"redis without url", func(c *Config) { c.Cache.Backend = cache.BackendRedis }, herrors.ErrCodeInvalidInput},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "s3" }, herrors.ErrCodeInvalidInput},
		{"step year", func(c *Config) { c.Steps[0].Year = 1900 }, herrors.ErrCodeInvalidStep},
		{"step layout", func(c *Config) { c.Steps[1].Layout = "spiral" }, herrors.ErrCodeInvalidStep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !herrors.Is(err, tt.code) {
				t.Errorf("Validate() = %v, want code %s", err, tt.code)
			}
		})
	}
}
