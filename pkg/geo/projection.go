package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/harvest/pkg/bubble"
)

// MaxLatitude is the Mercator clip latitude in degrees.
const MaxLatitude = 85.0511287798

// Projection is a Mercator projection scaled and translated to a viewport.
type Projection struct {
	K, TX, TY float64
}

// mercator returns unscaled Mercator coordinates with y pointing down.
func mercator(lon, lat float64) (float64, float64) {
	lat = max(min(lat, MaxLatitude), -MaxLatitude)
	lambda := lon * math.Pi / 180
	phi := lat * math.Pi / 180
	return lambda, -math.Log(math.Tan(math.Pi/4 + phi/2))
}

// Fit builds the projection that fits g inside a width x height viewport
// inset by padding on every side.
func Fit(g *Geometry, width, height, padding float64) Projection {
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, f := range g.features {
		for _, poly := range f.Polygons {
			for _, ring := range poly {
				for _, pt := range ring {
					x, y := mercator(pt[0], pt[1])
					x0, x1 = math.Min(x0, x), math.Max(x1, x)
					y0, y1 = math.Min(y0, y), math.Max(y1, y)
				}
			}
		}
	}

	w := math.Max(width-2*padding, 1)
	h := math.Max(height-2*padding, 1)
	dx, dy := x1-x0, y1-y0
	if math.IsInf(x0, 0) || (dx == 0 && dy == 0) {
		return Projection{K: 1, TX: width / 2, TY: height / 2}
	}

	k := math.Inf(1)
	if dx > 0 {
		k = w / dx
	}
	if dy > 0 {
		k = math.Min(k, h/dy)
	}
	return Projection{
		K:  k,
		TX: padding + (w-k*(x0+x1))/2,
		TY: padding + (h-k*(y0+y1))/2,
	}
}

// Project maps a lon/lat position to viewport pixels.
func (p Projection) Project(lon, lat float64) (float64, float64) {
	x, y := mercator(lon, lat)
	return p.K*x + p.TX, p.K*y + p.TY
}

// Centroid returns the area-weighted centroid of the projected outline.
// Exterior rings add area and holes subtract it. Degenerate outlines fall
// back to the mean of their vertices.
func (p Projection) Centroid(f *Feature) (bubble.Point, bool) {
	var cx, cy, area float64
	var sx, sy, n float64
	for _, poly := range f.Polygons {
		for i, ring := range poly {
			a, x, y := p.ringMoments(ring)
			sign := 1.0
			if i > 0 {
				sign = -1
			}
			a = sign * math.Abs(a)
			if a != 0 {
				cx += x / 3 * a
				cy += y / 3 * a
				area += a
			}
			for _, pt := range ring {
				px, py := p.Project(pt[0], pt[1])
				sx, sy, n = sx+px, sy+py, n+1
			}
		}
	}
	if area != 0 {
		return bubble.Point{X: cx / area, Y: cy / area}, true
	}
	if n == 0 {
		return bubble.Point{}, false
	}
	return bubble.Point{X: sx / n, Y: sy / n}, true
}

// ringMoments returns the unsigned ring area and its first moments divided
// by that area times three, i.e. the ring centroid scaled by 3.
func (p Projection) ringMoments(ring [][2]float64) (area, mx, my float64) {
	if len(ring) < 3 {
		return 0, 0, 0
	}
	var a2, sx, sy float64
	x0, y0 := p.Project(ring[len(ring)-1][0], ring[len(ring)-1][1])
	for _, pt := range ring {
		x1, y1 := p.Project(pt[0], pt[1])
		cross := x0*y1 - x1*y0
		a2 += cross
		sx += (x0 + x1) * cross
		sy += (y0 + y1) * cross
		x0, y0 = x1, y1
	}
	if a2 == 0 {
		return 0, 0, 0
	}
	// Centroid = s / (3 * a2); return s / a2 so callers divide by 3.
	return math.Abs(a2) / 2, sx / a2, sy / a2
}

// Path renders the projected outline as SVG path data.
func (p Projection) Path(f *Feature) string {
	var b strings.Builder
	for _, poly := range f.Polygons {
		for _, ring := range poly {
			for i, pt := range ring {
				x, y := p.Project(pt[0], pt[1])
				if i == 0 {
					b.WriteByte('M')
				} else {
					b.WriteByte('L')
				}
				b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
				b.WriteByte(',')
				b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
			}
			b.WriteByte('Z')
		}
	}
	return b.String()
}
