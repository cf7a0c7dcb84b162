package story

import (
	"github.com/matzehuels/harvest/pkg/aggregate"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/force"
)

// Step is one narrative panel bound to a layout and a year.
type Step struct {
	ID       string     `toml:"id" json:"id"`
	Layout   force.Kind `toml:"layout" json:"layout"`
	Headline string     `toml:"headline" json:"headline"`
	Copy     string     `toml:"copy" json:"copy"`
	Prompt   string     `toml:"prompt" json:"prompt,omitempty"`
	Year     int        `toml:"year" json:"year"`
	Slider   bool       `toml:"slider" json:"slider"`
}

// Mode returns the visualization the step shows.
func (s Step) Mode() Mode {
	if s.Layout == force.Map {
		return ModeMap
	}
	return ModeBubble
}

// Mode selects between the bubble chart and the world map.
type Mode string

const (
	ModeBubble Mode = "bubble"
	ModeMap    Mode = "map"
)

// Default story years.
const (
	StartYear   = 1963
	EndYear     = 2023
	DefaultYear = 2023
)

// DefaultYears is the supported slider range.
var DefaultYears = aggregate.YearRange{Start: StartYear, End: EndYear}

// DefaultSteps returns the four-panel cocoa narrative.
func DefaultSteps() []Step {
	return []Step{
		{
			ID:       "cluster",
			Layout:   force.Cluster,
			Headline: "WHERE DOES CHOCOLATE COME FROM?",
			Copy:     "Before you take your next bite, consider the supply chain. Every circle is a country, sized by its cocoa harvest in 2023.",
			Year:     DefaultYear,
		},
		{
			ID:       "reveal",
			Layout:   force.Highlight,
			Headline: "TWO FARMS FEED THE WORLD.",
			Copy:     "Côte d'Ivoire and Ghana account for well over half of global cocoa. This concentration of supply carries real risk for the chocolate market.",
			Year:     DefaultYear,
		},
		{
			ID:       "continent",
			Layout:   force.Continent,
			Headline: "AFRICA CARRIES THE HARVEST.",
			Copy:     "Regroup the countries by continent and Africa's cluster dwarfs the rest. The world's chocolate depends on one region for its primary ingredient.",
			Year:     DefaultYear,
		},
		{
			ID:       "map",
			Layout:   force.Map,
			Headline: "EXPLORE THE GLOBAL COCOA MAP.",
			Copy:     "Move the slider to watch production shift from 1963 to 2023. Select a country to see its production data. Africa stays dominant, but watch Indonesia and Brazil rise and fall along the way.",
			Year:     StartYear,
			Slider:   true,
		},
	}
}

// ValidateSteps checks a step sequence against the supported years.
func ValidateSteps(steps []Step, years aggregate.YearRange) error {
	if len(steps) == 0 {
		return herrors.New(herrors.ErrCodeInvalidStep, "story has no steps")
	}
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return herrors.New(herrors.ErrCodeInvalidStep, "step %d has no id", i)
		}
		if seen[s.ID] {
			return herrors.New(herrors.ErrCodeInvalidStep, "duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
		if _, err := force.ParseKind(string(s.Layout)); err != nil {
			return herrors.Wrap(herrors.ErrCodeInvalidStep, err, "step %q", s.ID)
		}
		if err := herrors.ValidateYear(s.Year, years.Start, years.End); err != nil {
			return herrors.Wrap(herrors.ErrCodeInvalidStep, err, "step %q", s.ID)
		}
	}
	return nil
}

// normalizeSteps copies steps with layout aliases resolved.
func normalizeSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		if k, err := force.ParseKind(string(s.Layout)); err == nil {
			s.Layout = k
		}
		out[i] = s
	}
	return out
}
