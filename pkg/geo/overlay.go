package geo

import (
	"cmp"
	"slices"

	"github.com/matzehuels/harvest/pkg/aggregate"
	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/reference"
	"github.com/matzehuels/harvest/pkg/units"
)

// Options tune the overlay.
type Options struct {
	Padding   float64
	MinRadius float64
	MaxRadius float64
	MinZoom   float64
	MaxZoom   float64
}

// DefaultOptions returns a 40 px fit padding, 2 to 15 px bubbles and zoom
// limits of 1 to 20.
func DefaultOptions() Options {
	return Options{Padding: 40, MinRadius: 2, MaxRadius: 15, MinZoom: 1, MaxZoom: 20}
}

// Bubble is one producing country drawn on the map.
type Bubble struct {
	Country       string  `json:"country"`
	DisplayName   string  `json:"displayName"`
	Continent     string  `json:"continent"`
	Production    float64 `json:"production"`
	AreaHarvested float64 `json:"areaHarvested"`
	Yield         float64 `json:"yield"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Radius        float64 `json:"r"`
}

// Info is the country detail panel.
type Info struct {
	Country     string        `json:"country"`
	DisplayName string        `json:"displayName"`
	Flag        string        `json:"flag"`
	Year        int           `json:"year"`
	Metrics     units.Metrics `json:"-"`
	Lines       [][2]string   `json:"lines"`
}

// Outline is one projected country path.
type Outline struct {
	Name string `json:"name"`
	D    string `json:"d"`
}

// Overlay is the map view for one session. It is not safe for concurrent
// use. Until geometry is set every lookup is a no-op.
type Overlay struct {
	opts Options
	ref  *reference.Tables
	geom *Geometry
	zoom *Zoom

	width, height float64
	proj          Projection
	centroids     map[string]bubble.Point
}

// NewOverlay creates an uninitialized overlay.
func NewOverlay(ref *reference.Tables, opts Options) *Overlay {
	if ref == nil {
		ref = reference.Default()
	}
	if opts.MaxRadius <= 0 {
		opts = DefaultOptions()
	}
	return &Overlay{opts: opts, ref: ref, zoom: NewZoom(opts.MinZoom, opts.MaxZoom)}
}

// Ready reports whether geometry has been set.
func (o *Overlay) Ready() bool { return o.geom != nil }

// SetGeometry installs geometry and fits it to the last known viewport.
func (o *Overlay) SetGeometry(g *Geometry) {
	o.geom = g
	if o.width > 0 && o.height > 0 {
		o.Fit(o.width, o.height)
	}
}

// Fit re-projects the existing geometry for a new viewport size.
func (o *Overlay) Fit(width, height float64) {
	o.width, o.height = width, height
	if o.geom == nil {
		return
	}
	o.proj = Fit(o.geom, width, height, o.opts.Padding)
	o.centroids = make(map[string]bubble.Point, o.geom.Len())
	for _, f := range o.geom.features {
		if _, seen := o.centroids[f.Name]; seen {
			continue
		}
		if c, ok := o.proj.Centroid(f); ok {
			o.centroids[f.Name] = c
		}
	}
}

// Zoom returns the overlay's pan/zoom state.
func (o *Overlay) Zoom() *Zoom { return o.zoom }

// Outlines returns every projected country path.
func (o *Overlay) Outlines() []Outline {
	if o.geom == nil {
		return nil
	}
	out := make([]Outline, len(o.geom.features))
	for i, f := range o.geom.features {
		out[i] = Outline{Name: f.Name, D: o.proj.Path(f)}
	}
	return out
}

// Bubbles sizes one bubble per country with production in year and a
// matching outline. Radii follow a square-root scale from zero to the
// year's largest plotted production. Output is sorted largest first so
// small bubbles draw on top.
func (o *Overlay) Bubbles(table *aggregate.Table, year int) []Bubble {
	if o.geom == nil || table == nil {
		return nil
	}
	var out []Bubble
	var maxProd float64
	for country, m := range table.Year(year) {
		if m.Production <= 0 {
			continue
		}
		display := o.ref.ToGeo(country)
		c, ok := o.centroids[display]
		if !ok {
			// Some geometry sources use the data name itself.
			if c, ok = o.centroids[country]; !ok {
				continue
			}
			display = country
		}
		out = append(out, Bubble{
			Country:       country,
			DisplayName:   display,
			Continent:     o.ref.Continent(country),
			Production:    m.Production,
			AreaHarvested: m.AreaHarvested,
			Yield:         m.Yield,
			X:             c.X,
			Y:             c.Y,
		})
		maxProd = max(maxProd, m.Production)
	}
	for i := range out {
		out[i].Radius = bubble.SqrtScale(out[i].Production, maxProd, o.opts.MinRadius, o.opts.MaxRadius)
	}
	slices.SortFunc(out, func(a, b Bubble) int {
		if c := cmp.Compare(b.Production, a.Production); c != 0 {
			return c
		}
		return cmp.Compare(a.Country, b.Country)
	})
	return out
}

// Select resolves a clicked name for year, trying it as a dataset name
// before mapping it from the geometry convention. It returns false, closing the panel, when the overlay is uninitialized or
// the country has no production that year.
func (o *Overlay) Select(table *aggregate.Table, name string, year int) (Info, bool) {
	if o.geom == nil || table == nil {
		return Info{}, false
	}
	// Dataset names win: some of them ("Congo") are also geometry aliases.
	dataName := name
	m, ok := table.Lookup(dataName, year)
	if !ok {
		dataName = o.ref.FromGeo(name)
		m, ok = table.Lookup(dataName, year)
	}
	if !ok || m.Production <= 0 {
		return Info{}, false
	}
	conv := units.Convert(m.Production, m.AreaHarvested, m.Yield)
	return Info{
		Country:     dataName,
		DisplayName: o.ref.ToGeo(dataName),
		Flag:        o.ref.Flag(dataName),
		Year:        year,
		Metrics:     conv,
		Lines:       conv.Lines(),
	}, true
}

// Hit returns the bubble under screen point (x, y), honouring the zoom
// transform. Bubbles are tested smallest first.
func (o *Overlay) Hit(bubbles []Bubble, x, y float64) (Bubble, bool) {
	px, py := o.zoom.Transform().Invert(x, y)
	for i := len(bubbles) - 1; i >= 0; i-- {
		b := bubbles[i]
		dx, dy := px-b.X, py-b.Y
		if dx*dx+dy*dy <= b.Radius*b.Radius {
			return b, true
		}
	}
	return Bubble{}, false
}
