package server

import (
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/story"
)

// eventRequest is the JSON form of a story event. Type selects the event;
// only the fields that event uses are read.
//
//	{"type": "scroll", "index": 3}
//	{"type": "slide", "year": 1990}
//	{"type": "select", "country": "Ghana"}
type eventRequest struct {
	Type    string  `json:"type"`
	Index   int     `json:"index"`
	Year    int     `json:"year"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Country string  `json:"country"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Factor  float64 `json:"factor"`
	DX      float64 `json:"dx"`
	DY      float64 `json:"dy"`
}

func (r eventRequest) event() (story.Event, error) {
	switch r.Type {
	case "scroll":
		return story.Scroll{Index: r.Index}, nil
	case "slide":
		return story.Slide{Year: r.Year}, nil
	case "resize":
		if err := herrors.ValidateCanvas(r.Width, r.Height); err != nil {
			return nil, err
		}
		return story.Resize{Width: r.Width, Height: r.Height}, nil
	case "select":
		if r.Country == "" {
			return nil, herrors.New(herrors.ErrCodeInvalidInput, "select needs a country")
		}
		return story.Select{Country: r.Country}, nil
	case "select_at":
		return story.SelectAt{X: r.X, Y: r.Y}, nil
	case "close_info":
		return story.CloseInfo{}, nil
	case "zoom":
		if r.Factor <= 0 {
			return nil, herrors.New(herrors.ErrCodeInvalidInput, "zoom factor must be positive")
		}
		return story.Zoom{Factor: r.Factor}, nil
	case "pan":
		return story.Pan{DX: r.DX, DY: r.DY}, nil
	case "reset_zoom":
		return story.ResetZoom{}, nil
	case "":
		return nil, herrors.New(herrors.ErrCodeInvalidInput, "event type is required")
	default:
		return nil, herrors.New(herrors.ErrCodeInvalidInput, "unknown event type %q", r.Type)
	}
}
