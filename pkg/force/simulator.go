// Package force relaxes bubble positions toward layout anchors while keeping
// bubbles apart and inside the canvas.
//
// The integrator follows d3-force: alpha decays geometrically toward zero,
// anchor forces add alpha-scaled pulls to velocity, velocity decays, then
// positions advance. Collision is resolved by projecting overlapping pairs
// apart, heavier bubbles moving less, and every tick ends with a clamp into
// the padded canvas. The tick count is fixed so layouts are reproducible.
package force

import (
	"math"
	"math/rand/v2"

	"github.com/matzehuels/harvest/pkg/bubble"
)

// Options tune the simulation.
type Options struct {
	Ticks int
	// Margin is the extra gap required between two bubbles.
	Margin float64
	// Padding insets the clamp box from each canvas edge.
	Padding float64

	ClusterStrength   float64
	AnchorStrength    float64
	HighlightOffset   float64
	VelocityDecay     float64
	CollideIterations int

	// SettleIterations bounds the extra collide and clamp passes run after
	// the last tick while any pair still overlaps.
	SettleIterations int
	AlphaMin         float64
	Seed             uint64
}

// DefaultOptions returns the story's tuning: 250 ticks, a 6 px gap
// (3 px per bubble) and an 80 px clamp inset.
func DefaultOptions() Options {
	return Options{
		Ticks:             250,
		Margin:            6,
		Padding:           80,
		ClusterStrength:   0.05,
		AnchorStrength:    0.12,
		HighlightOffset:   0.12,
		VelocityDecay:     0.4,
		CollideIterations: 3,
		SettleIterations:  30,
		AlphaMin:          0.001,
	}
}

// Simulator runs force relaxation. It is not safe for concurrent use.
type Simulator struct {
	opts Options
	rng  *rand.Rand
}

// New creates a Simulator. Zero-valued options take their defaults.
func New(opts Options) *Simulator {
	def := DefaultOptions()
	if opts.Ticks <= 0 {
		opts.Ticks = def.Ticks
	}
	if opts.CollideIterations <= 0 {
		opts.CollideIterations = def.CollideIterations
	}
	if opts.AlphaMin <= 0 || opts.AlphaMin >= 1 {
		opts.AlphaMin = def.AlphaMin
	}
	if opts.VelocityDecay <= 0 || opts.VelocityDecay >= 1 {
		opts.VelocityDecay = def.VelocityDecay
	}
	return &Simulator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xda942042e4dd58b5)),
	}
}

// Options returns the effective options.
func (s *Simulator) Options() Options { return s.opts }

// Stats summarizes a run.
type Stats struct {
	Ticks int
	Alpha float64
	// MaxOverlap is the deepest remaining pair intrusion below the
	// required separation, 0 when every pair is clear.
	MaxOverlap float64
}

// Run relaxes nodes in place for the configured tick budget, then writes
// each node's final position to pos (when non-nil).
func (s *Simulator) Run(nodes []bubble.Node, kind Kind, canvas bubble.Canvas, pos *bubble.Positions) Stats {
	if len(nodes) == 0 {
		return Stats{}
	}

	strength := s.opts.AnchorStrength
	if kind == Cluster {
		strength = s.opts.ClusterStrength
	}

	tx := make([]float64, len(nodes))
	ty := make([]float64, len(nodes))
	for i := range nodes {
		tx[i], ty[i] = s.target(&nodes[i], kind, canvas)
	}
	vx := make([]float64, len(nodes))
	vy := make([]float64, len(nodes))

	alpha := 1.0
	// Same decay d3 uses: alpha reaches AlphaMin after 300 ticks.
	decay := 1 - math.Pow(s.opts.AlphaMin, 1.0/300)
	keep := 1 - s.opts.VelocityDecay

	for range s.opts.Ticks {
		alpha += (0 - alpha) * decay

		for i := range nodes {
			n := &nodes[i]
			vx[i] += (tx[i] - n.X) * strength * alpha
			vy[i] += (ty[i] - n.Y) * strength * alpha
			vx[i] *= keep
			vy[i] *= keep
			n.X += vx[i]
			n.Y += vy[i]
		}

		for range s.opts.CollideIterations {
			s.collide(nodes)
			s.clamp(nodes, canvas)
		}
	}

	for range s.opts.SettleIterations {
		if MaxOverlap(nodes, s.opts.Margin) <= 1e-6 {
			break
		}
		s.collide(nodes)
		s.clamp(nodes, canvas)
	}

	if pos != nil {
		for _, n := range nodes {
			pos.Set(n.ID, bubble.Point{X: n.X, Y: n.Y})
		}
	}
	return Stats{Ticks: s.opts.Ticks, Alpha: alpha, MaxOverlap: MaxOverlap(nodes, s.opts.Margin)}
}

// collide pushes every overlapping pair apart along their centre line.
// Each node moves in proportion to the other's area.
func (s *Simulator) collide(nodes []bubble.Node) {
	for i := range nodes {
		a := &nodes[i]
		for j := i + 1; j < len(nodes); j++ {
			b := &nodes[j]
			need := a.Radius + b.Radius + s.opts.Margin
			dx, dy := b.X-a.X, b.Y-a.Y
			if math.Abs(dx) >= need || math.Abs(dy) >= need {
				continue
			}
			d2 := dx*dx + dy*dy
			if d2 >= need*need {
				continue
			}
			if d2 == 0 {
				dx, dy = s.jiggle(), s.jiggle()
				d2 = dx*dx + dy*dy
			}
			d := math.Sqrt(d2)
			push := (need - d) / d

			ra, rb := a.Radius*a.Radius, b.Radius*b.Radius
			wa := 0.5
			if ra+rb > 0 {
				wa = rb / (ra + rb)
			}
			wb := 1 - wa

			a.X -= dx * push * wa
			a.Y -= dy * push * wa
			b.X += dx * push * wb
			b.Y += dy * push * wb
		}
	}
}

// clamp keeps each node inside [Padding+r, size-Padding-r] on both axes.
// A bubble too large for the box is centred on that axis.
func (s *Simulator) clamp(nodes []bubble.Node, canvas bubble.Canvas) {
	for i := range nodes {
		n := &nodes[i]
		n.X = clampAxis(n.X, n.Radius, s.opts.Padding, canvas.Width)
		n.Y = clampAxis(n.Y, n.Radius, s.opts.Padding, canvas.Height)
	}
}

func clampAxis(v, r, pad, size float64) float64 {
	lo, hi := pad+r, size-pad-r
	if lo > hi {
		return size / 2
	}
	return min(max(v, lo), hi)
}

func (s *Simulator) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

// MaxOverlap returns the deepest intrusion of any pair below
// r1 + r2 + margin.
func MaxOverlap(nodes []bubble.Node, margin float64) float64 {
	var worst float64
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			need := nodes[i].Radius + nodes[j].Radius + margin
			d := math.Hypot(nodes[j].X-nodes[i].X, nodes[j].Y-nodes[i].Y)
			worst = math.Max(worst, need-d)
		}
	}
	return worst
}

// InBounds reports whether n lies inside the clamp box for canvas.
func InBounds(n bubble.Node, canvas bubble.Canvas, padding float64) bool {
	ok := func(v, size float64) bool {
		lo, hi := padding+n.Radius, size-padding-n.Radius
		if lo > hi {
			return v == size/2
		}
		return v >= lo-1e-9 && v <= hi+1e-9
	}
	return ok(n.X, canvas.Width) && ok(n.Y, canvas.Height)
}
