package force

import (
	herrors "github.com/matzehuels/harvest/pkg/errors"
)

// Kind names an anchoring strategy.
type Kind string

const (
	Cluster   Kind = "cluster"
	Highlight Kind = "highlight"
	Continent Kind = "continent"
	Map       Kind = "map"
)

// Kinds lists every layout in story order.
var Kinds = []Kind{Cluster, Highlight, Continent, Map}

// ParseKind validates a layout name. "timeline" is accepted as Map.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Cluster, Highlight, Continent, Map:
		return Kind(s), nil
	case "timeline":
		return Map, nil
	}
	return "", herrors.New(herrors.ErrCodeInvalidLayout, "unknown layout %q (want cluster, highlight, continent or map)", s)
}

// ByContinent reports whether the layout anchors nodes per continent.
func (k Kind) ByContinent() bool { return k == Continent || k == Map }
