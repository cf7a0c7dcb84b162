package cache

// Keyer names cache entries.
type Keyer interface {
	// SourceKey names downloaded dataset or geometry bytes.
	SourceKey(kind, url string) string
	// ArtifactKey names a rendered frame.
	ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the render inputs that change an artifact's bytes.
type ArtifactKeyOpts struct {
	Step    int     `json:"step"`
	Year    int     `json:"year"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Format  string  `json:"format"`
	Seed    uint64  `json:"seed"`
	Scale   float64 `json:"scale,omitempty"`
	Bare    bool    `json:"bare,omitempty"`
	Country string  `json:"country,omitempty"`
}

// DefaultKeyer is the Keyer used by every backend.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() DefaultKeyer { return DefaultKeyer{} }

func (DefaultKeyer) SourceKey(kind, url string) string {
	return "source:" + kind + ":" + url
}

func (DefaultKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", datasetHash, opts)
}

var _ Keyer = DefaultKeyer{}
