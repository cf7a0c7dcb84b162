// Package geo projects production figures onto world boundary geometry.
//
// A [Geometry] is parsed once from a GeoJSON FeatureCollection and shared
// read-only. An [Overlay] fits it to a viewport with a Mercator
// [Projection], sizes one bubble per producing country at its projected
// centroid, answers click lookups with an [Info] panel and carries the
// pan/zoom [Transform].
package geo

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	herrors "github.com/matzehuels/harvest/pkg/errors"
)

// DefaultNameProperty is the Natural Earth country name property.
const DefaultNameProperty = "NAME"

// Polygon is a list of rings of [lon, lat] positions; ring 0 is the exterior.
type Polygon [][][2]float64

// Feature is one named country outline.
type Feature struct {
	Name     string
	Polygons []Polygon
}

// Geometry is an immutable set of country outlines keyed by name.
type Geometry struct {
	features []*Feature
	byName   map[string]*Feature
}

// Parse decodes a FeatureCollection. The country name is read from
// nameProp, falling back to "name" and "ADMIN". Features without a
// polygonal geometry or a name are skipped.
func Parse(data []byte, nameProp string) (*Geometry, error) {
	if nameProp == "" {
		nameProp = DefaultNameProperty
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, herrors.Wrap(herrors.ErrCodeGeometryUnavailable, err, "decode geometry")
	}

	g := &Geometry{byName: make(map[string]*Feature)}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		name := featureName(f, nameProp)
		if name == "" {
			continue
		}

		var polys [][][][]float64
		switch {
		case f.Geometry.IsPolygon():
			polys = [][][][]float64{f.Geometry.Polygon}
		case f.Geometry.IsMultiPolygon():
			polys = f.Geometry.MultiPolygon
		default:
			continue
		}

		feat := &Feature{Name: name}
		for _, p := range polys {
			poly := make(Polygon, 0, len(p))
			for _, ring := range p {
				r := make([][2]float64, 0, len(ring))
				for _, pt := range ring {
					if len(pt) >= 2 {
						r = append(r, [2]float64{pt[0], pt[1]})
					}
				}
				if len(r) > 0 {
					poly = append(poly, r)
				}
			}
			if len(poly) > 0 {
				feat.Polygons = append(feat.Polygons, poly)
			}
		}
		if len(feat.Polygons) == 0 {
			continue
		}
		if _, dup := g.byName[name]; !dup {
			g.byName[name] = feat
		}
		g.features = append(g.features, feat)
	}
	if len(g.features) == 0 {
		return nil, herrors.New(herrors.ErrCodeGeometryUnavailable, "geometry has no named polygon features (name property %q)", nameProp)
	}
	return g, nil
}

func featureName(f *geojson.Feature, prop string) string {
	for _, key := range []string{prop, "name", "ADMIN"} {
		if s, ok := f.Properties[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Features returns the outlines in document order.
func (g *Geometry) Features() []*Feature { return g.features }

// Feature looks up an outline by geometry name.
func (g *Geometry) Feature(name string) (*Feature, bool) {
	f, ok := g.byName[name]
	return f, ok
}

// Len returns the number of features.
func (g *Geometry) Len() int { return len(g.features) }

func (g *Geometry) String() string { return fmt.Sprintf("geometry(%d features)", len(g.features)) }
