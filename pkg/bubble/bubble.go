// Package bubble turns one year of aggregated production into the ranked,
// sized and seeded nodes the force simulator lays out.
package bubble

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/harvest/pkg/aggregate"
)

// Node is one country's bubble for a single year.
type Node struct {
	ID         string  `json:"id"`
	Production float64 `json:"production"`
	Continent  string  `json:"continent"`
	Share      float64 `json:"share"`
	Rank       int     `json:"rank"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Radius     float64 `json:"r"`
}

// Canvas is the drawing area in pixels.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the canvas midpoint.
func (c Canvas) Center() (float64, float64) { return c.Width / 2, c.Height / 2 }

// Classifier assigns a continent to a dataset country name.
type Classifier interface {
	Continent(country string) string
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(string) string

func (f ClassifierFunc) Continent(c string) string { return f(c) }

// Config tunes node construction.
type Config struct {
	TopK      int
	MinRadius float64
	MaxRadius float64
	// Jitter is the full width of the random offset applied to nodes with
	// no cached position.
	Jitter float64
}

// DefaultConfig returns 80 nodes with radii 8.4 to 89.6 px and 30 px jitter.
func DefaultConfig() Config {
	return Config{TopK: 80, MinRadius: 6 * 1.4, MaxRadius: 64 * 1.4, Jitter: 30}
}

// Builder creates nodes. It is not safe for concurrent use.
type Builder struct {
	cfg      Config
	classify Classifier
	rng      *rand.Rand
}

// NewBuilder creates a Builder whose jitter is drawn from a source seeded
// with seed, so identical inputs produce identical seeds.
func NewBuilder(cfg Config, classify Classifier, seed uint64) *Builder {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MaxRadius < cfg.MinRadius {
		cfg.MaxRadius = cfg.MinRadius
	}
	if classify == nil {
		classify = ClassifierFunc(func(string) string { return "" })
	}
	return &Builder{
		cfg:      cfg,
		classify: classify,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the builder's effective configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build returns the top-K nodes for year, ranked by descending production
// with ties kept in first-appearance order. A year without data yields nil.
func (b *Builder) Build(year int, agg *aggregate.Aggregate, pos *Positions, canvas Canvas) []Node {
	entries := agg.Countries(year)
	if len(entries) == 0 {
		return nil
	}

	total := agg.Total(year)
	if total == 0 {
		total = 1
	}

	slices.SortStableFunc(entries, func(x, y aggregate.Entry) int {
		return cmp.Compare(y.Production, x.Production)
	})
	if len(entries) > b.cfg.TopK {
		entries = entries[:b.cfg.TopK]
	}

	cx, cy := canvas.Center()
	domain := agg.GlobalMax()
	nodes := make([]Node, len(entries))
	for i, e := range entries {
		n := Node{
			ID:         e.Country,
			Production: e.Production,
			Continent:  b.classify.Continent(e.Country),
			Share:      e.Production / total,
			Rank:       i + 1,
			Radius:     b.Radius(e.Production, domain),
		}
		if p, ok := pos.Get(e.Country); ok {
			n.X, n.Y = p.X, p.Y
		} else {
			n.X = cx + (b.rng.Float64()-0.5)*b.cfg.Jitter
			n.Y = cy + (b.rng.Float64()-0.5)*b.cfg.Jitter
		}
		nodes[i] = n
	}
	return nodes
}

// Radius maps v through a square-root scale from [0, domain] onto
// [MinRadius, MaxRadius], so bubble area grows linearly with production.
func (b *Builder) Radius(v, domain float64) float64 {
	return SqrtScale(v, domain, b.cfg.MinRadius, b.cfg.MaxRadius)
}

// SqrtScale maps v in [0, domain] to [lo, hi] by square root, clamping
// values outside the domain. A non-positive domain maps everything to lo.
func SqrtScale(v, domain, lo, hi float64) float64 {
	if domain <= 0 || v <= 0 || math.IsNaN(v) {
		return lo
	}
	t := math.Sqrt(min(v/domain, 1))
	return lo + (hi-lo)*t
}
