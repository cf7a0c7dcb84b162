package sink

import (
	"encoding/json"

	"github.com/matzehuels/harvest/pkg/story"
)

// RenderJSON encodes a frame with indentation.
func RenderJSON(f story.Frame) ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}
