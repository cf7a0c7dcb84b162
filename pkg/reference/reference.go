// Package reference holds the static lookup tables the story and the map
// overlay share: continent classification, dataset/geometry name aliases,
// flags and continent colours.
//
// The tables ship as one embedded, versioned YAML document so every consumer
// reads the same data. Load a custom document with [Parse] to override it.
package reference

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/biter777/countries"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/harvest/pkg/buildinfo"
)

//go:embed reference.yaml
var embedded []byte

// GlobeFlag is shown when no flag is known for a country.
const GlobeFlag = "🌍"

// Dispute records a country the narrative tables classify differently.
type Dispute struct {
	Country   string `yaml:"country"`
	Primary   string `yaml:"primary"`
	Alternate string `yaml:"alternate"`
}

// Tables is the parsed reference document. It is read-only after Parse.
type Tables struct {
	Version    string              `yaml:"version"`
	Fallback   string              `yaml:"fallback"`
	Order      []string            `yaml:"order"`
	Continents map[string][]string `yaml:"continents"`
	Disputed   []Dispute           `yaml:"disputed"`
	Aliases    map[string]string   `yaml:"aliases"`
	Flags      map[string]string   `yaml:"flags"`
	Colors     map[string]string   `yaml:"colors"`

	byCountry map[string]string
	reverse   map[string]string
}

// Parse decodes a reference document and builds its lookup indexes.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse reference tables: %w", err)
	}
	if t.Fallback == "" {
		return nil, fmt.Errorf("reference tables: missing fallback continent")
	}

	t.byCountry = make(map[string]string)
	for _, continent := range t.Order {
		for _, country := range t.Continents[continent] {
			if _, dup := t.byCountry[country]; !dup {
				t.byCountry[country] = continent
			}
		}
	}
	// Continents missing from Order still classify, after ordered ones.
	for continent, members := range t.Continents {
		for _, country := range members {
			if _, dup := t.byCountry[country]; !dup {
				t.byCountry[country] = continent
			}
		}
	}

	t.reverse = make(map[string]string, len(t.Aliases))
	for data, geo := range t.Aliases {
		t.reverse[geo] = data
	}
	return &t, nil
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables. It panics if the embedded document is
// invalid or its version disagrees with buildinfo.ReferenceVersion.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(embedded)
		if err != nil {
			panic(err)
		}
		if t.Version != buildinfo.ReferenceVersion {
			panic(fmt.Sprintf("reference tables version %q, binary expects %q", t.Version, buildinfo.ReferenceVersion))
		}
		defaultTables = t
	})
	return defaultTables
}

// Continent classifies a dataset country name. Unlisted countries fall back
// to the document's fallback bucket.
func (t *Tables) Continent(country string) string {
	if c, ok := t.byCountry[country]; ok {
		return c
	}
	if c, ok := t.byCountry[t.ToGeo(country)]; ok {
		return c
	}
	return t.Fallback
}

// Known reports whether country is classified explicitly.
func (t *Tables) Known(country string) bool {
	_, ok := t.byCountry[country]
	return ok
}

// ToGeo maps a dataset name to the geometry's name; misses map to themselves.
func (t *Tables) ToGeo(name string) string {
	if g, ok := t.Aliases[name]; ok {
		return g
	}
	return name
}

// FromGeo maps a geometry name back to the dataset's name.
func (t *Tables) FromGeo(name string) string {
	if d, ok := t.reverse[name]; ok {
		return d
	}
	return name
}

// Flag returns a flag emoji for either naming convention, consulting the ISO
// country database before falling back to a globe.
func (t *Tables) Flag(name string) string {
	if f, ok := t.Flags[name]; ok {
		return f
	}
	for _, candidate := range []string{t.ToGeo(name), t.FromGeo(name)} {
		if f, ok := t.Flags[candidate]; ok {
			return f
		}
	}
	if code := countries.ByName(name); code != countries.Unknown {
		if e := code.Emoji(); e != "" {
			return e
		}
	}
	return GlobeFlag
}

// Color returns the display colour for a continent, or a neutral grey.
func (t *Tables) Color(continent string) string {
	if c, ok := t.Colors[continent]; ok {
		return c
	}
	return "#999999"
}

// DisputeFor returns the recorded classification conflict for a country.
func (t *Tables) DisputeFor(country string) (Dispute, bool) {
	for _, d := range t.Disputed {
		if d.Country == country {
			return d, true
		}
	}
	return Dispute{}, false
}
