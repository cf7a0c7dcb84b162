package story

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/harvest/pkg/aggregate"
	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/dataset"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/force"
	"github.com/matzehuels/harvest/pkg/geo"
	"github.com/matzehuels/harvest/pkg/observability"
	"github.com/matzehuels/harvest/pkg/ready"
	"github.com/matzehuels/harvest/pkg/reference"
)

// Messages surfaced through the Renderer.
const (
	LoadingMessage = "Loading cocoa data…"
	FailureMessage = "We couldn't load the cocoa data. Please check the dataset path."
)

// =============================================================================
// Dataset
// =============================================================================

// Dataset is a loaded, aggregated dataset. It is immutable and may be shared
// by any number of machines.
type Dataset struct {
	Source  string
	Records []dataset.Record
	Agg     *aggregate.Aggregate
	Table   *aggregate.Table
}

// NewDataset aggregates records for the given year range.
func NewDataset(source string, records []dataset.Record, years aggregate.YearRange) *Dataset {
	return &Dataset{
		Source:  source,
		Records: records,
		Agg:     aggregate.Build(records, years),
		Table:   aggregate.BuildTable(records),
	}
}

// DatasetFunc reads the records behind a source.
type DatasetFunc func(ctx context.Context, source string) ([]dataset.Record, error)

// GeometryFunc fetches world geometry. It is called at most once per machine.
type GeometryFunc func(ctx context.Context) (*geo.Geometry, error)

// =============================================================================
// Configuration
// =============================================================================

// Config holds everything a machine needs besides its collaborators.
type Config struct {
	Steps  []Step
	Years  aggregate.YearRange
	Bubble bubble.Config
	Force  force.Options
	Map    geo.Options
	Canvas bubble.Canvas
	Seed   uint64
}

// DefaultConfig returns the four-step cocoa story on a 1200x800 canvas.
func DefaultConfig() Config {
	return Config{
		Steps:  DefaultSteps(),
		Years:  DefaultYears,
		Bubble: bubble.DefaultConfig(),
		Force:  force.DefaultOptions(),
		Map:    geo.DefaultOptions(),
		Canvas: bubble.Canvas{Width: 1200, Height: 800},
		Seed:   1,
	}
}

// Option configures a Machine.
type Option func(*Machine)

// WithRenderer sets the frame sink. The default discards frames.
func WithRenderer(r Renderer) Option {
	return func(m *Machine) {
		if r != nil {
			m.render = r
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithReference overrides the continent, alias and flag tables.
func WithReference(t *reference.Tables) Option {
	return func(m *Machine) {
		if t != nil {
			m.ref = t
		}
	}
}

// WithDatasetLoader sets the function LoadDataset uses.
func WithDatasetLoader(fn DatasetFunc) Option {
	return func(m *Machine) { m.loadFn = fn }
}

// WithDataset attaches an already started dataset load, so several machines
// can share one fetch.
func WithDataset(f *ready.Future[*Dataset]) Option {
	return func(m *Machine) { m.data = f }
}

// WithGeometry sets the geometry source used on first entry into a map step.
// Without one the overlay stays uninitialized.
func WithGeometry(fn GeometryFunc) Option {
	return func(m *Machine) { m.geomFn = fn }
}

// =============================================================================
// Machine
// =============================================================================

// Machine is one viewer's story session. Events are serialized: each one is
// fully resolved (rebuild, simulate, render) before the next is handled.
type Machine struct {
	cfg    Config
	ref    *reference.Tables
	render Renderer
	logger *log.Logger

	loadFn DatasetFunc
	geomFn GeometryFunc

	builder *bubble.Builder
	sim     *force.Simulator

	mu         sync.Mutex
	data       *ready.Future[*Dataset]
	geom       *ready.Future[*geo.Geometry]
	ds         *Dataset
	loadErr    error
	starting   bool
	started    bool
	state      ViewState
	sliderYear int
	canvas     bubble.Canvas
	pos        *bubble.Positions
	overlay    *geo.Overlay
	nodes      []bubble.Node
	labels     []force.Label
	bubbles    []geo.Bubble
	info       *geo.Info
	frame      Frame
	handlers   []func(geo.Info)
}

// NewMachine validates cfg and creates an idle machine.
func NewMachine(cfg Config, opts ...Option) (*Machine, error) {
	if cfg.Years == (aggregate.YearRange{}) {
		cfg.Years = DefaultYears
	}
	cfg.Steps = normalizeSteps(cfg.Steps)
	if err := ValidateSteps(cfg.Steps, cfg.Years); err != nil {
		return nil, err
	}
	if err := herrors.ValidateCanvas(cfg.Canvas.Width, cfg.Canvas.Height); err != nil {
		return nil, err
	}
	m := &Machine{
		cfg:    cfg,
		render: NopRenderer{},
		logger: log.New(io.Discard),
		canvas: cfg.Canvas,
		pos:    bubble.NewPositions(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ref == nil {
		m.ref = reference.Default()
	}
	m.builder = bubble.NewBuilder(cfg.Bubble, bubble.ClassifierFunc(m.ref.Continent), cfg.Seed)
	m.sim = force.New(withSeed(cfg.Force, cfg.Seed))
	m.overlay = geo.NewOverlay(m.ref, cfg.Map)
	m.overlay.Fit(m.canvas.Width, m.canvas.Height)
	m.state = ViewState{StepIndex: -1}
	return m, nil
}

func withSeed(o force.Options, seed uint64) force.Options {
	if o.Seed == 0 {
		o.Seed = seed
	}
	return o
}

// LoadDataset starts the one-shot dataset load. Later calls return the
// same future.
func (m *Machine) LoadDataset(ctx context.Context, source string) *ready.Future[*Dataset] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil {
		return m.data
	}
	if m.loadFn == nil {
		f := ready.New[*Dataset]()
		_ = f.Reject(herrors.New(herrors.ErrCodeDatasetLoad, "no dataset loader configured"))
		m.data = f
		return f
	}
	load, years := m.loadFn, m.cfg.Years
	m.data = ready.Go(context.WithoutCancel(ctx), func(ctx context.Context) (*Dataset, error) {
		observability.Story().OnLoadStart(ctx, source)
		start := time.Now()
		records, err := load(ctx, source)
		if err != nil {
			observability.Story().OnLoadComplete(ctx, source, 0, time.Since(start), err)
			return nil, err
		}
		observability.Story().OnLoadComplete(ctx, source, len(records), time.Since(start), nil)
		return NewDataset(source, records, years), nil
	})
	return m.data
}

// Start shows the loading message, waits for the dataset and enters the
// first step. A failed load renders the failure message once and is
// returned; the machine then rejects every event.
func (m *Machine) Start(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	switch {
	case m.started:
		defer m.mu.Unlock()
		return m.frame, nil
	case m.loadErr != nil:
		defer m.mu.Unlock()
		return Frame{}, m.loadErr
	case m.data == nil:
		m.mu.Unlock()
		return Frame{}, herrors.New(herrors.ErrCodeNotReady, "no dataset load started")
	case m.starting:
		m.mu.Unlock()
		return Frame{}, herrors.New(herrors.ErrCodeNotReady, "story is already starting")
	}
	m.starting = true
	data := m.data
	m.render.Loading(LoadingMessage)
	m.mu.Unlock()

	ds, err := data.Wait(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Frame{}, err
		}
		m.loadErr = herrors.Wrap(herrors.ErrCodeDatasetLoad, err, "load dataset")
		m.logger.Error("dataset load failed", "err", err)
		m.render.Failed(FailureMessage)
		return Frame{}, m.loadErr
	}
	m.ds = ds
	m.started = true
	m.logger.Info("dataset ready", "source", ds.Source, "records", len(ds.Records), "years", len(ds.Agg.Years()), "countries", ds.Table.Len())
	return m.enter(ctx, 0)
}

// Handle applies one event and returns the resulting frame.
func (m *Machine) Handle(ctx context.Context, ev Event) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Frame{}, m.loadErr
	}

	// Resizes before start only record the size.
	if r, ok := ev.(Resize); ok {
		return m.resize(r)
	}
	if !m.started {
		return Frame{}, herrors.New(herrors.ErrCodeNotReady, "story has not started")
	}

	switch e := ev.(type) {
	case Scroll:
		if err := herrors.ValidateStepIndex(e.Index, len(m.cfg.Steps)); err != nil {
			return m.frame, err
		}
		if e.Index == m.state.StepIndex {
			return m.frame, nil
		}
		return m.enter(ctx, e.Index)
	case Slide:
		return m.slide(e.Year)
	case Select:
		return m.selectCountry(e.Country), nil
	case SelectAt:
		if m.mapActive() {
			if b, ok := m.overlay.Hit(m.bubbles, e.X, e.Y); ok {
				return m.selectCountry(b.Country), nil
			}
		}
		return m.frame, nil
	case CloseInfo:
		if m.info != nil {
			m.info = nil
			m.publish()
		}
		return m.frame, nil
	case Zoom:
		if m.mapActive() && e.Factor > 0 {
			m.overlay.Zoom().ScaleBy(e.Factor, m.canvas.Width/2, m.canvas.Height/2)
			m.publish()
		}
		return m.frame, nil
	case Pan:
		if m.mapActive() {
			m.overlay.Zoom().Pan(e.DX, e.DY)
			m.publish()
		}
		return m.frame, nil
	case ResetZoom:
		if m.mapActive() {
			m.overlay.Zoom().Reset()
			m.publish()
		}
		return m.frame, nil
	default:
		return m.frame, herrors.New(herrors.ErrCodeUnsupported, "unknown event %T", ev)
	}
}

// SetStep scrolls to step index.
func (m *Machine) SetStep(ctx context.Context, index int) (Frame, error) {
	return m.Handle(ctx, Scroll{Index: index})
}

// SetYear moves the year slider.
func (m *Machine) SetYear(ctx context.Context, year int) (Frame, error) {
	return m.Handle(ctx, Slide{Year: year})
}

// Resize changes the canvas size.
func (m *Machine) Resize(ctx context.Context, width, height float64) (Frame, error) {
	return m.Handle(ctx, Resize{Width: width, Height: height})
}

// SelectCountry opens the info panel for a country.
func (m *Machine) SelectCountry(ctx context.Context, country string) (Frame, error) {
	return m.Handle(ctx, Select{Country: country})
}

// OnCountrySelected registers a handler called with every opened info panel.
// Handlers run while the machine is locked and must not call back into it.
func (m *Machine) OnCountrySelected(fn func(geo.Info)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// State returns the current view state. StepIndex is -1 before start.
func (m *Machine) State() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Frame returns the last rendered frame.
func (m *Machine) Frame() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// Steps returns a copy of the step sequence.
func (m *Machine) Steps() []Step {
	out := make([]Step, len(m.cfg.Steps))
	copy(out, m.cfg.Steps)
	return out
}

// Dataset returns the loaded dataset, or nil before start.
func (m *Machine) Dataset() *Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ds
}

// =============================================================================
// Transitions
// =============================================================================

func (m *Machine) enter(ctx context.Context, idx int) (Frame, error) {
	from := m.state.StepIndex
	step := m.cfg.Steps[idx]

	year := step.Year
	if step.Slider && m.sliderYear != 0 {
		year = m.sliderYear
	}
	m.state = ViewState{StepIndex: idx, Year: year, Layout: step.Layout}

	if step.Mode() == ModeMap {
		m.ensureGeometry(ctx)
	} else {
		m.info = nil
	}

	m.rebuild()
	observability.Story().OnTransition(ctx, from, idx, string(step.Layout), year)
	m.logger.Debug("step", "from", from, "to", idx, "layout", step.Layout, "year", year)
	return m.frame, nil
}

// ensureGeometry triggers the one-shot geometry fetch and waits for it. A
// failure leaves the overlay uninitialized and is not retried.
func (m *Machine) ensureGeometry(ctx context.Context) {
	if m.geomFn == nil || m.overlay.Ready() {
		return
	}
	if m.geom == nil {
		fn := m.geomFn
		m.geom = ready.Go(context.WithoutCancel(ctx), func(ctx context.Context) (*geo.Geometry, error) {
			return fn(ctx)
		})
	}
	g, err := m.geom.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.Story().OnGeometry(ctx, 0, err)
		m.logger.Error("map geometry unavailable", "err", err)
		m.geomFn = nil
		return
	}
	observability.Story().OnGeometry(ctx, g.Len(), nil)
	m.overlay.SetGeometry(g)
	m.overlay.Fit(m.canvas.Width, m.canvas.Height)
}

func (m *Machine) slide(year int) (Frame, error) {
	step := m.cfg.Steps[m.state.StepIndex]
	if !step.Slider {
		return m.frame, herrors.New(herrors.ErrCodeSliderDisabled, "step %q has no year slider", step.ID)
	}
	year = m.cfg.Years.Clamp(year)
	if year == m.state.Year {
		return m.frame, nil
	}
	m.sliderYear = year
	m.state.Year = year
	if m.info != nil {
		if info, ok := m.overlay.Select(m.ds.Table, m.info.Country, year); ok {
			m.info = &info
		} else {
			m.info = nil
		}
	}
	m.rebuild()
	return m.frame, nil
}

func (m *Machine) resize(r Resize) (Frame, error) {
	if err := herrors.ValidateCanvas(r.Width, r.Height); err != nil {
		return m.frame, err
	}
	m.canvas = bubble.Canvas{Width: r.Width, Height: r.Height}
	m.overlay.Fit(r.Width, r.Height)
	if !m.started {
		return m.frame, nil
	}
	m.rebuild()
	return m.frame, nil
}

func (m *Machine) selectCountry(name string) Frame {
	if !m.mapActive() {
		return m.frame
	}
	info, ok := m.overlay.Select(m.ds.Table, name, m.state.Year)
	if !ok {
		m.info = nil
		m.publish()
		return m.frame
	}
	m.info = &info
	for _, h := range m.handlers {
		h(info)
	}
	m.publish()
	return m.frame
}

func (m *Machine) mapActive() bool {
	return m.started && m.cfg.Steps[m.state.StepIndex].Mode() == ModeMap && m.overlay.Ready()
}

// rebuild recomputes nodes (and map bubbles in map mode) for the current
// state, relaxes them and renders.
func (m *Machine) rebuild() {
	start := time.Now()
	layout := m.state.Layout
	m.nodes = m.builder.Build(m.state.Year, m.ds.Agg, m.pos, m.canvas)
	m.sim.Run(m.nodes, layout, m.canvas, m.pos)
	m.logger.Debug("layout settled", "layout", layout, "year", m.state.Year, "positions", m.pos.Len())
	m.labels = force.Labels(m.nodes, layout, m.canvas)
	m.bubbles = nil
	if m.cfg.Steps[m.state.StepIndex].Mode() == ModeMap {
		m.bubbles = m.overlay.Bubbles(m.ds.Table, m.state.Year)
	}
	observability.Story().OnRebuild(context.Background(), string(layout), m.state.Year, len(m.nodes), time.Since(start))
	m.publish()
}

func (m *Machine) publish() {
	step := m.cfg.Steps[m.state.StepIndex]
	f := Frame{
		StepIndex: m.state.StepIndex,
		StepCount: len(m.cfg.Steps),
		Step:      step,
		Year:      m.state.Year,
		Mode:      step.Mode(),
		Layout:    m.state.Layout,
		Canvas:    m.canvas,
		Nodes:     append([]bubble.Node(nil), m.nodes...),
		Labels:    m.labels,
		Total:     m.ds.Agg.Total(m.state.Year),
		Highlight: m.state.Layout == force.Highlight,
	}
	if f.Mode == ModeMap {
		f.Map = &MapFrame{
			Ready:     m.overlay.Ready(),
			Outlines:  m.overlay.Outlines(),
			Bubbles:   m.bubbles,
			Transform: m.overlay.Zoom().Transform(),
		}
		if m.info != nil {
			info := *m.info
			f.Info = &info
		}
	}
	m.frame = f
	m.render.Render(f)
}
