// Package pipeline is the load → simulate → render path shared by the CLI
// and the HTTP server.
//
// A [Runner] owns the cache, the HTTP fetcher and the resolved
// configuration. It loads each dataset source once, fetches world geometry
// once, builds story machines on top of both and renders single steps into
// cached artifacts:
//
//	runner := pipeline.NewRunner(cfg, c, nil, logger)
//	defer runner.Close()
//
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Step:    3,
//	    Year:    1990,
//	    Formats: []sink.Format{sink.FormatSVG, sink.FormatJSON},
//	})
//	svg := res.Artifacts[sink.FormatSVG]
//
// Interactive callers build machines directly with [Runner.NewMachine] and
// drive them with events.
package pipeline

import (
	"time"

	"github.com/matzehuels/harvest/pkg/cache"
	"github.com/matzehuels/harvest/pkg/config"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

// DefaultScale is the PNG resolution factor.
const DefaultScale = 2.0

// Options select one rendered step.
type Options struct {
	// Source overrides the configured dataset source.
	Source string
	// Step is the zero-based step index.
	Step int
	// Year moves the slider on slider steps. Zero keeps the step's year.
	Year int
	// Width and Height override the configured canvas.
	Width  float64
	Height float64
	// Country opens the info panel on map steps.
	Country string
	Formats []sink.Format
	Scale   float64
	// NoChrome drops the headline, counter and prompt from SVG output.
	NoChrome bool
	// Refresh ignores cached artifacts but still stores new ones.
	Refresh bool
}

// ValidateAndSetDefaults fills unset fields from cfg and checks the rest.
func (o *Options) ValidateAndSetDefaults(cfg *config.Config) error {
	if o.Source == "" {
		o.Source = cfg.Dataset.Source
	}
	if o.Width == 0 && o.Height == 0 {
		o.Width, o.Height = cfg.Canvas.Width, cfg.Canvas.Height
	}
	if err := herrors.ValidateCanvas(o.Width, o.Height); err != nil {
		return err
	}
	if err := herrors.ValidateStepIndex(o.Step, len(cfg.Steps)); err != nil {
		return err
	}
	if o.Year != 0 {
		step := cfg.Steps[o.Step]
		if !step.Slider && o.Year != step.Year {
			return herrors.New(herrors.ErrCodeSliderDisabled, "step %q has no year slider", step.ID)
		}
		if !cfg.Years().Contains(o.Year) {
			return herrors.New(herrors.ErrCodeInvalidYear, "year %d outside %d-%d", o.Year, cfg.Dataset.StartYear, cfg.Dataset.EndYear)
		}
	}
	if o.Country != "" && cfg.Steps[o.Step].Mode() != story.ModeMap {
		return herrors.New(herrors.ErrCodeInvalidInput, "country selection needs a map step")
	}
	if len(o.Formats) == 0 {
		o.Formats = []sink.Format{sink.FormatSVG}
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	return nil
}

// ArtifactKeyOpts returns the cache key inputs for one format.
func (o Options) ArtifactKeyOpts(cfg *config.Config, format sink.Format) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{
		Step:    o.Step,
		Year:    o.Year,
		Width:   o.Width,
		Height:  o.Height,
		Format:  string(format),
		Seed:    cfg.Canvas.Seed,
		Bare:    o.NoChrome,
		Country: o.Country,
	}
	if format == sink.FormatPNG {
		opts.Scale = o.Scale
	}
	return opts
}

// SinkOptions converts o for sink.Render.
func (o Options) SinkOptions() sink.Options {
	return sink.Options{Scale: o.Scale, NoChrome: o.NoChrome}
}

// Result is the output of [Runner.Execute].
type Result struct {
	// Frame is nil when every artifact came from the cache.
	Frame       *story.Frame
	Artifacts   map[sink.Format][]byte
	DatasetHash string
	Stats       Stats
	CacheInfo   CacheInfo
}

// Stats records stage timings.
type Stats struct {
	LoadTime   time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
	NodeCount  int
}

// CacheInfo reports which stages were served from the cache.
type CacheInfo struct {
	RenderHit bool
}
