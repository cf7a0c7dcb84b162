package geo

// Zoom step factors for the zoom-in and zoom-out controls.
const (
	ZoomInFactor  = 1.5
	ZoomOutFactor = 0.75
)

// Transform is a uniform scale followed by a translation, applied to the
// whole overlay: screen = K*p + (X, Y).
type Transform struct {
	K float64 `json:"k"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// Apply maps an overlay point to the screen.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.K*x + t.X, t.K*y + t.Y
}

// Invert maps a screen point back to overlay coordinates.
func (t Transform) Invert(x, y float64) (float64, float64) {
	return (x - t.X) / t.K, (y - t.Y) / t.K
}

// Zoom tracks a scale-limited pan/zoom transform.
type Zoom struct {
	min, max float64
	t        Transform
}

// NewZoom creates a Zoom limited to [minK, maxK]. A non-positive minK becomes
// 1 and a maxK below minK becomes 20, or minK when that is larger.
func NewZoom(minK, maxK float64) *Zoom {
	if minK <= 0 {
		minK = 1
	}
	if maxK < minK {
		maxK = max(20, minK)
	}
	return &Zoom{min: minK, max: maxK, t: Identity}
}

// Transform returns the current transform.
func (z *Zoom) Transform() Transform { return z.t }

// ScaleBy multiplies the scale by factor around the viewport point (cx, cy),
// keeping that point fixed on screen. The scale is clamped to the limits.
func (z *Zoom) ScaleBy(factor, cx, cy float64) Transform {
	if factor <= 0 {
		return z.t
	}
	k := min(max(z.t.K*factor, z.min), z.max)
	px, py := z.t.Invert(cx, cy)
	z.t = Transform{K: k, X: cx - px*k, Y: cy - py*k}
	return z.t
}

// Pan shifts the view by (dx, dy) screen pixels.
func (z *Zoom) Pan(dx, dy float64) Transform {
	z.t.X += dx
	z.t.Y += dy
	return z.t
}

// Reset restores the identity transform.
func (z *Zoom) Reset() Transform {
	z.t = Identity
	return z.t
}
