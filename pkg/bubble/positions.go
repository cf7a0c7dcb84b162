package bubble

// Point is a cached node position.
type Point struct {
	X, Y float64
}

// Positions caches the last settled position of each node by country.
// The simulator writes it after every run and the builder reads it before
// the next, so a country keeps its place across years and layouts.
// It is not synchronized; callers order access.
type Positions struct {
	m map[string]Point
}

// NewPositions returns an empty cache.
func NewPositions() *Positions {
	return &Positions{m: make(map[string]Point)}
}

// Get returns the cached position for id. A nil cache always misses.
func (p *Positions) Get(id string) (Point, bool) {
	if p == nil {
		return Point{}, false
	}
	pt, ok := p.m[id]
	return pt, ok
}

// Set records id's position.
func (p *Positions) Set(id string, pt Point) { p.m[id] = pt }

// Len returns the number of cached positions.
func (p *Positions) Len() int {
	if p == nil {
		return 0
	}
	return len(p.m)
}

// Reset forgets every position.
func (p *Positions) Reset() { clear(p.m) }
