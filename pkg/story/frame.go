package story

import (
	"fmt"

	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/force"
	"github.com/matzehuels/harvest/pkg/geo"
)

// ViewState is the machine's position in the story.
type ViewState struct {
	StepIndex int        `json:"step"`
	Year      int        `json:"year"`
	Layout    force.Kind `json:"layout"`
}

// Frame is everything a renderer needs to draw one settled state.
type Frame struct {
	StepIndex int           `json:"step"`
	StepCount int           `json:"stepCount"`
	Step      Step          `json:"stepInfo"`
	Year      int           `json:"year"`
	Mode      Mode          `json:"mode"`
	Layout    force.Kind    `json:"layout"`
	Canvas    bubble.Canvas `json:"canvas"`
	Nodes     []bubble.Node `json:"nodes"`
	Labels    []force.Label `json:"labels,omitempty"`
	// Total is the year's global production in tonnes.
	Total float64 `json:"total"`
	// Highlight mutes every node ranked below the top two.
	Highlight bool      `json:"highlight"`
	Map       *MapFrame `json:"map,omitempty"`
	Info      *geo.Info `json:"info,omitempty"`
}

// MapFrame is the overlay part of a frame.
type MapFrame struct {
	// Ready is false when geometry failed to load; the map stays empty.
	Ready     bool          `json:"ready"`
	Outlines  []geo.Outline `json:"outlines,omitempty"`
	Bubbles   []geo.Bubble  `json:"bubbles"`
	Transform geo.Transform `json:"transform"`
}

// Muted reports whether n is drawn dimmed in this frame.
func (f Frame) Muted(n bubble.Node) bool {
	return f.Highlight && n.Rank > 2
}

// StepLabel returns "Step i of n".
func (f Frame) StepLabel() string {
	return fmt.Sprintf("Step %d of %d", f.StepIndex+1, f.StepCount)
}

// Renderer draws machine output. Calls happen while the machine holds its
// lock, so implementations must not call back into the Machine.
type Renderer interface {
	Loading(msg string)
	Failed(msg string)
	Render(f Frame)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) Loading(string) {}
func (NopRenderer) Failed(string)  {}
func (NopRenderer) Render(Frame)   {}
