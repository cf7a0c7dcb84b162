package force

import "github.com/matzehuels/harvest/pkg/bubble"

// ContinentAnchors holds anchor points as fractions of the canvas.
var ContinentAnchors = map[string]bubble.Point{
	"Africa":        {X: 0.25, Y: 0.50},
	"North America": {X: 0.50, Y: 0.30},
	"South America": {X: 0.50, Y: 0.70},
	"Asia":          {X: 0.75, Y: 0.45},
	"Oceania":       {X: 0.80, Y: 0.70},
}

// LabelOffset lifts continent captions above their anchor.
const LabelOffset = 50

// Label is a continent caption positioned on the canvas.
type Label struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

func continentAnchor(continent string, canvas bubble.Canvas) (float64, float64) {
	if a, ok := ContinentAnchors[continent]; ok {
		return a.X * canvas.Width, a.Y * canvas.Height
	}
	return canvas.Center()
}

// target returns a node's anchor for the layout.
func (s *Simulator) target(n *bubble.Node, kind Kind, canvas bubble.Canvas) (float64, float64) {
	cx, cy := canvas.Center()
	switch {
	case kind.ByContinent():
		return continentAnchor(n.Continent, canvas)
	case kind == Highlight && n.Rank == 1:
		return cx - s.opts.HighlightOffset*canvas.Width, cy
	case kind == Highlight && n.Rank == 2:
		return cx + s.opts.HighlightOffset*canvas.Width, cy
	default:
		return cx, cy
	}
}

// Labels returns one caption per continent present in nodes, in first
// appearance order. Layouts that do not group by continent have none.
func Labels(nodes []bubble.Node, kind Kind, canvas bubble.Canvas) []Label {
	if !kind.ByContinent() {
		return nil
	}
	seen := make(map[string]bool)
	var out []Label
	for _, n := range nodes {
		if seen[n.Continent] {
			continue
		}
		seen[n.Continent] = true
		x, y := continentAnchor(n.Continent, canvas)
		out = append(out, Label{Text: n.Continent, X: x, Y: y - LabelOffset})
	}
	return out
}
