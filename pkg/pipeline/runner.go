package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/harvest/pkg/cache"
	"github.com/matzehuels/harvest/pkg/config"
	"github.com/matzehuels/harvest/pkg/dataset"
	"github.com/matzehuels/harvest/pkg/geo"
	"github.com/matzehuels/harvest/pkg/httputil"
	"github.com/matzehuels/harvest/pkg/ready"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/story"
)

// Runner loads shared inputs once and renders story steps with caching.
//
// Datasets are memoized per source and geometry is fetched at most once, so
// every machine a Runner builds shares the same immutable inputs. A Runner
// is safe for concurrent use.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	Config *config.Config
	Ref    *reference.Tables

	fetcher *httputil.Fetcher
	loader  *dataset.Loader

	mu       sync.Mutex
	datasets map[string]*ready.Future[*story.Dataset]
	geometry *ready.Future[*geo.Geometry]
}

// NewRunner creates a runner for cfg.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, caching is disabled.
func NewRunner(cfg *config.Config, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	fetcher := httputil.NewFetcher(c, httputil.Options{Keyer: keyer, TTL: cfg.Cache.TTL})
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		Config:   cfg,
		Ref:      reference.Default(),
		fetcher:  fetcher,
		loader:   dataset.NewLoader(fetcher, logger),
		datasets: make(map[string]*ready.Future[*story.Dataset]),
	}
}

// =============================================================================
// Inputs
// =============================================================================

// DatasetFuture starts loading source, or returns the load already under
// way. An empty source means the configured one.
func (r *Runner) DatasetFuture(ctx context.Context, source string) *ready.Future[*story.Dataset] {
	if source == "" {
		source = r.Config.Dataset.Source
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.datasets[source]; ok {
		return f
	}
	years := r.Config.Years()
	f := ready.Go(context.WithoutCancel(ctx), func(ctx context.Context) (*story.Dataset, error) {
		start := time.Now()
		records, err := r.loader.Load(ctx, source)
		if err != nil {
			return nil, err
		}
		ds := story.NewDataset(source, records, years)
		r.Logger.Info("loaded dataset",
			"source", source,
			"records", len(records),
			"dropped", ds.Agg.Dropped(),
			"duration", time.Since(start))
		return ds, nil
	})
	r.datasets[source] = f
	return f
}

// LoadDataset waits for the dataset behind source.
func (r *Runner) LoadDataset(ctx context.Context, source string) (*story.Dataset, error) {
	return r.DatasetFuture(ctx, source).Wait(ctx)
}

// Forget drops the memoized dataset for source so the next load reads it
// again. Machines already holding the old dataset keep it.
func (r *Runner) Forget(source string) {
	if source == "" {
		source = r.Config.Dataset.Source
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.datasets, source)
}

// LoadGeometry fetches the configured world geometry once. A failure is
// remembered; the overlay then stays uninitialized for every machine.
func (r *Runner) LoadGeometry(ctx context.Context) (*geo.Geometry, error) {
	r.mu.Lock()
	if r.geometry == nil {
		src, prop := r.Config.Map.Geometry, r.Config.Map.NameProperty
		r.geometry = ready.Go(context.WithoutCancel(ctx), func(ctx context.Context) (*geo.Geometry, error) {
			g, err := geo.Load(ctx, r.fetcher, src, prop)
			if err != nil {
				return nil, err
			}
			r.Logger.Debug("loaded geometry", "source", src, "features", g.Len())
			return g, nil
		})
	}
	f := r.geometry
	r.mu.Unlock()
	return f.Wait(ctx)
}

// DatasetHash fingerprints the records behind ds for artifact keys.
func DatasetHash(ds *story.Dataset) string {
	var buf bytes.Buffer
	for _, rec := range ds.Records {
		fmt.Fprintf(&buf, "%s\x1f%s\x1f%d\x1f%g\n", rec.Country, rec.Element, rec.Year, rec.Value)
	}
	return cache.Hash(buf.Bytes())
}

// =============================================================================
// Machines
// =============================================================================

// NewMachine builds a story machine over the shared dataset for source and
// the shared geometry. The caller still calls Start.
func (r *Runner) NewMachine(ctx context.Context, source string, opts ...story.Option) (*story.Machine, error) {
	return r.newMachine(ctx, source, r.Config.Story(), opts...)
}

func (r *Runner) newMachine(ctx context.Context, source string, cfg story.Config, opts ...story.Option) (*story.Machine, error) {
	base := []story.Option{
		story.WithLogger(r.Logger),
		story.WithReference(r.Ref),
		story.WithDataset(r.DatasetFuture(ctx, source)),
		story.WithGeometry(r.LoadGeometry),
	}
	return story.NewMachine(cfg, append(base, opts...)...)
}

// =============================================================================
// Execute
// =============================================================================

// Execute renders one step in every requested format. Artifacts are served
// from the cache when all formats are present.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(r.Config); err != nil {
		return nil, err
	}
	result := &Result{Artifacts: make(map[sink.Format][]byte, len(opts.Formats))}

	loadStart := time.Now()
	ds, err := r.LoadDataset(ctx, opts.Source)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Stats.LoadTime = time.Since(loadStart)
	result.DatasetHash = DatasetHash(ds)

	if !opts.Refresh {
		if artifacts, ok := r.cachedArtifacts(ctx, result.DatasetHash, opts); ok {
			result.Artifacts = artifacts
			result.CacheInfo.RenderHit = true
			r.Logger.Debug("artifacts from cache", "step", opts.Step, "formats", opts.Formats)
			return result, nil
		}
	}

	layoutStart := time.Now()
	frame, err := r.Frame(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Frame = &frame
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.Stats.NodeCount = len(frame.Nodes)

	r.Logger.Info("computed layout",
		"step", frame.Step.ID,
		"year", frame.Year,
		"nodes", len(frame.Nodes),
		"duration", result.Stats.LayoutTime)

	renderStart := time.Now()
	sinkOpts := opts.SinkOptions()
	sinkOpts.Reference = r.Ref
	for _, format := range opts.Formats {
		data, err := sink.Render(ctx, frame, format, sinkOpts)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = data
		key := r.Keyer.ArtifactKey(result.DatasetHash, opts.ArtifactKeyOpts(r.Config, format))
		_ = r.Cache.Set(ctx, key, data, r.Config.Cache.TTL)
	}
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// Frame drives a fresh machine to the step, year and selection in opts and
// returns the resulting frame. opts must already be validated.
func (r *Runner) Frame(ctx context.Context, opts Options) (story.Frame, error) {
	cfg := r.Config.Story()
	cfg.Canvas.Width, cfg.Canvas.Height = opts.Width, opts.Height

	m, err := r.newMachine(ctx, opts.Source, cfg)
	if err != nil {
		return story.Frame{}, err
	}
	frame, err := m.Start(ctx)
	if err != nil {
		return story.Frame{}, err
	}
	if opts.Step != frame.StepIndex {
		if frame, err = m.SetStep(ctx, opts.Step); err != nil {
			return story.Frame{}, err
		}
	}
	if opts.Year != 0 && frame.Step.Slider {
		if frame, err = m.SetYear(ctx, opts.Year); err != nil {
			return story.Frame{}, err
		}
	}
	if opts.Country != "" {
		frame, err = m.SelectCountry(ctx, opts.Country)
		if err != nil {
			return story.Frame{}, err
		}
	}
	return frame, nil
}

func (r *Runner) cachedArtifacts(ctx context.Context, hash string, opts Options) (map[sink.Format][]byte, bool) {
	artifacts := make(map[sink.Format][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		key := r.Keyer.ArtifactKey(hash, opts.ArtifactKeyOpts(r.Config, format))
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			return nil, false
		}
		artifacts[format] = data
	}
	return artifacts, true
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
