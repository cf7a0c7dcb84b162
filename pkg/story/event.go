package story

// Event is a discrete input delivered to Machine.Handle.
type Event interface {
	eventName() string
}

// Scroll reports the narrative panel now most in view.
type Scroll struct{ Index int }

// Slide sets the working year from the year slider.
type Slide struct{ Year int }

// Resize reports a new canvas size. Adapters debounce bursts first.
type Resize struct{ Width, Height float64 }

// Select opens the info panel for a country, by either naming convention.
type Select struct{ Country string }

// SelectAt selects the map bubble under a screen point.
type SelectAt struct{ X, Y float64 }

// CloseInfo closes the info panel.
type CloseInfo struct{}

// Zoom scales the map around the viewport centre.
type Zoom struct{ Factor float64 }

// Pan shifts the map.
type Pan struct{ DX, DY float64 }

// ResetZoom restores the identity map transform.
type ResetZoom struct{}

func (Scroll) eventName() string    { return "scroll" }
func (Slide) eventName() string     { return "slide" }
func (Resize) eventName() string    { return "resize" }
func (Select) eventName() string    { return "select" }
func (SelectAt) eventName() string  { return "select_at" }
func (CloseInfo) eventName() string { return "close_info" }
func (Zoom) eventName() string      { return "zoom" }
func (Pan) eventName() string       { return "pan" }
func (ResetZoom) eventName() string { return "reset_zoom" }
