package story

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/matzehuels/harvest/pkg/aggregate"
	"github.com/matzehuels/harvest/pkg/bubble"
	"github.com/matzehuels/harvest/pkg/dataset"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/force"
	"github.com/matzehuels/harvest/pkg/geo"
	"github.com/matzehuels/harvest/pkg/ready"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder captures everything a machine renders.
type recorder struct {
	mu      sync.Mutex
	loading []string
	failed  []string
	frames  []Frame
}

func (r *recorder) Loading(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, msg)
}

func (r *recorder) Failed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, msg)
}

func (r *recorder) Render(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func cocoaRecords() []dataset.Record {
	rec := func(country, element string, year int, v float64) dataset.Record {
		return dataset.Record{Country: country, Element: element, Year: year, Value: v}
	}
	return []dataset.Record{
		rec("Côte d'Ivoire", dataset.ElementProduction, 2023, 2_200_000),
		rec("Côte d'Ivoire", dataset.ElementArea, 2023, 4_500_000),
		rec("Côte d'Ivoire", dataset.ElementYield, 2023, 490),
		rec("Ghana", dataset.ElementProduction, 2023, 650_000),
		rec("Ghana", dataset.ElementArea, 2023, 1_400_000),
		rec("Indonesia", dataset.ElementProduction, 2023, 640_000),
		rec("Brazil", dataset.ElementProduction, 2023, 300_000),
		rec("Ecuador", dataset.ElementProduction, 2023, 330_000),
		rec("Ghana", dataset.ElementProduction, 1963, 420_000),
		rec("Brazil", dataset.ElementProduction, 1963, 130_000),
		rec("Côte d'Ivoire", dataset.ElementProduction, 1980, 400_000),
	}
}

func square(lon, lat, half float64) string {
	return fmt.Sprintf(`[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]`,
		lon-half, lat-half, lon+half, lat-half, lon+half, lat+half, lon-half, lat+half, lon-half, lat-half)
}

func worldGeometry(t *testing.T) *geo.Geometry {
	t.Helper()
	feature := func(name, coords string) string {
		return `{"type":"Feature","properties":{"NAME":"` + name + `"},"geometry":{"type":"Polygon","coordinates":` + coords + `}}`
	}
	data := `{"type":"FeatureCollection","features":[` +
		feature("Ghana", square(-1, 8, 2)) + `,` +
		feature("Ivory Coast", square(-5.5, 7.5, 2)) + `,` +
		feature("Brazil", square(-50, -10, 10)) + `,` +
		feature("Indonesia", square(120, -2, 8)) + `]}`
	g, err := geo.Parse([]byte(data), "")
	if err != nil {
		t.Fatalf("geo.Parse: %v", err)
	}
	return g
}

func staticLoader(records []dataset.Record) DatasetFunc {
	return func(context.Context, string) ([]dataset.Record, error) { return records, nil }
}

type fixture struct {
	m        *Machine
	rec      *recorder
	geoCalls *atomic.Int32
}

func newFixture(t *testing.T, geom GeometryFunc, opts ...Option) fixture {
	t.Helper()
	rec := &recorder{}
	calls := &atomic.Int32{}
	if geom != nil {
		inner := geom
		geom = func(ctx context.Context) (*geo.Geometry, error) {
			calls.Add(1)
			return inner(ctx)
		}
	}
	opts = append([]Option{
		WithRenderer(rec),
		WithDatasetLoader(staticLoader(cocoaRecords())),
		WithGeometry(geom),
	}, opts...)
	m, err := NewMachine(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return fixture{m: m, rec: rec, geoCalls: calls}
}

func (f fixture) start(t *testing.T) Frame {
	t.Helper()
	ctx := context.Background()
	f.m.LoadDataset(ctx, "cocoa.csv")
	frame, err := f.m.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return frame
}

func TestStartEntersFirstStep(t *testing.T) {
	f := newFixture(t, nil)
	frame := f.start(t)

	if diff := cmp.Diff([]string{LoadingMessage}, f.rec.loading); diff != "" {
		t.Errorf("loading messages (-want +got):\n%s", diff)
	}
	if frame.StepIndex != 0 || frame.Year != 2023 || frame.Layout != force.Cluster || frame.Mode != ModeBubble {
		t.Errorf("first frame = step %d year %d layout %s mode %s", frame.StepIndex, frame.Year, frame.Layout, frame.Mode)
	}
	if got, want := frame.Total, 4_120_000.0; got != want {
		t.Errorf("Total = %v, want %v", got, want)
	}
	if len(frame.Nodes) != 5 {
		t.Errorf("nodes = %d, want 5", len(frame.Nodes))
	}
	if frame.StepLabel() != "Step 1 of 4" {
		t.Errorf("StepLabel() = %q", frame.StepLabel())
	}
	if frame.Map != nil {
		t.Error("bubble step carries a map frame")
	}
}

func TestStartLoadFailure(t *testing.T) {
	loadErr := errors.New("open cocoa.csv: no such file")
	rec := &recorder{}
	m, err := NewMachine(DefaultConfig(),
		WithRenderer(rec),
		WithDatasetLoader(func(context.Context, string) ([]dataset.Record, error) { return nil, loadErr }),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.LoadDataset(ctx, "cocoa.csv")

	_, err = m.Start(ctx)
	if !herrors.Is(err, herrors.ErrCodeDatasetLoad) || !errors.Is(err, loadErr) {
		t.Fatalf("Start error = %v", err)
	}
	if _, err := m.Start(ctx); err == nil {
		t.Error("second Start succeeded after failure")
	}
	if diff := cmp.Diff([]string{FailureMessage}, rec.failed); diff != "" {
		t.Errorf("failure messages (-want +got):\n%s", diff)
	}
	if _, err := m.SetStep(ctx, 1); !herrors.Is(err, herrors.ErrCodeDatasetLoad) {
		t.Errorf("SetStep after failure error = %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("rendered %d frames after failure", rec.count())
	}
}

func TestHandleBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.m.SetStep(ctx, 1); !herrors.Is(err, herrors.ErrCodeNotReady) {
		t.Errorf("SetStep before start error = %v", err)
	}
	if _, err := f.m.Start(ctx); !herrors.Is(err, herrors.ErrCodeNotReady) {
		t.Errorf("Start without load error = %v", err)
	}
	// A resize before start is remembered.
	if _, err := f.m.Resize(ctx, 900, 600); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	frame := f.start(t)
	if frame.Canvas != (bubble.Canvas{Width: 900, Height: 600}) {
		t.Errorf("canvas = %+v, want 900x600", frame.Canvas)
	}
}

func TestScrollToCurrentStepIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	first := f.start(t)
	n := f.rec.count()

	again, err := f.m.SetStep(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.rec.count() != n {
		t.Errorf("re-entering the current step rendered %d extra frames", f.rec.count()-n)
	}
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("frame changed (-want +got):\n%s", diff)
	}
}

func TestScrollRejectsBadIndex(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	for _, idx := range []int{-1, 4, 99} {
		if _, err := f.m.SetStep(context.Background(), idx); !herrors.Is(err, herrors.ErrCodeInvalidStep) {
			t.Errorf("SetStep(%d) error = %v", idx, err)
		}
	}
	if got := f.m.State().StepIndex; got != 0 {
		t.Errorf("StepIndex = %d after rejected scrolls", got)
	}
}

func TestHighlightAndContinentSteps(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	ctx := context.Background()

	frame, err := f.m.SetStep(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !frame.Highlight || frame.Layout != force.Highlight {
		t.Fatalf("step 1 highlight=%v layout=%s", frame.Highlight, frame.Layout)
	}
	for _, n := range frame.Nodes {
		if want := n.Rank > 2; frame.Muted(n) != want {
			t.Errorf("%s rank %d muted = %v", n.ID, n.Rank, frame.Muted(n))
		}
	}
	if len(frame.Labels) != 0 {
		t.Errorf("highlight labels = %v", frame.Labels)
	}

	frame, err = f.m.SetStep(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Highlight {
		t.Error("continent step is highlighted")
	}
	texts := map[string]bool{}
	for _, l := range frame.Labels {
		texts[l.Text] = true
	}
	for _, want := range []string{"Africa", "Asia", "South America"} {
		if !texts[want] {
			t.Errorf("missing continent label %q in %v", want, frame.Labels)
		}
	}
}

func TestTransitionsAreDeterministic(t *testing.T) {
	run := func() []Frame {
		f := newFixture(t, nil)
		f.start(t)
		ctx := context.Background()
		for _, idx := range []int{1, 2, 1, 0, 2} {
			if _, err := f.m.SetStep(ctx, idx); err != nil {
				t.Fatal(err)
			}
		}
		return f.rec.frames
	}
	if diff := cmp.Diff(run(), run()); diff != "" {
		t.Errorf("identical event sequences diverged (-first +second):\n%s", diff)
	}
}

func TestNodesStayInBoundsAcrossSteps(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	padding := DefaultConfig().Force.Padding
	for _, idx := range []int{1, 2, 0} {
		frame, err := f.m.SetStep(context.Background(), idx)
		if err != nil {
			t.Fatal(err)
		}
		for _, n := range frame.Nodes {
			if !force.InBounds(n, frame.Canvas, padding) {
				t.Errorf("step %d: %s at (%.1f, %.1f) r=%.1f out of bounds", idx, n.ID, n.X, n.Y, n.Radius)
			}
		}
	}
}

func TestSlider(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	ctx := context.Background()

	if _, err := f.m.SetYear(ctx, 1990); !herrors.Is(err, herrors.ErrCodeSliderDisabled) {
		t.Errorf("SetYear on a fixed step error = %v", err)
	}

	frame, err := f.m.SetStep(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Year != StartYear {
		t.Errorf("map step year = %d, want %d", frame.Year, StartYear)
	}

	tests := []struct {
		in, want int
	}{
		{1980, 1980},
		{3000, EndYear},
		{1900, StartYear},
	}
	for _, tt := range tests {
		frame, err := f.m.SetYear(ctx, tt.in)
		if err != nil {
			t.Fatalf("SetYear(%d): %v", tt.in, err)
		}
		if frame.Year != tt.want || f.m.State().Year != tt.want {
			t.Errorf("SetYear(%d) year = %d, want %d", tt.in, frame.Year, tt.want)
		}
	}

	// The slider year survives leaving and re-entering the step.
	if _, err := f.m.SetYear(ctx, 2023); err != nil {
		t.Fatal(err)
	}
	if _, err := f.m.SetStep(ctx, 0); err != nil {
		t.Fatal(err)
	}
	frame, err = f.m.SetStep(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Year != 2023 {
		t.Errorf("re-entered map step year = %d, want 2023", frame.Year)
	}
}

func TestMapGeometryFailure(t *testing.T) {
	f := newFixture(t, func(context.Context) (*geo.Geometry, error) {
		return nil, herrors.New(herrors.ErrCodeGeometryUnavailable, "fetch world: 503")
	})
	f.start(t)
	ctx := context.Background()

	frame, err := f.m.SetStep(ctx, 3)
	if err != nil {
		t.Fatalf("entering map step with broken geometry: %v", err)
	}
	if frame.Map == nil || frame.Map.Ready || len(frame.Map.Bubbles) != 0 {
		t.Errorf("map frame = %+v, want empty and not ready", frame.Map)
	}
	if len(frame.Nodes) == 0 {
		t.Error("map step lost its bubble nodes")
	}

	frame, err = f.m.SelectCountry(ctx, "Ghana")
	if err != nil || frame.Info != nil {
		t.Errorf("select on uninitialized overlay = %+v, %v", frame.Info, err)
	}
	if _, err := f.m.Handle(ctx, Zoom{Factor: geo.ZoomInFactor}); err != nil {
		t.Error(err)
	}

	f.m.SetStep(ctx, 0)
	f.m.SetStep(ctx, 3)
	if got := f.geoCalls.Load(); got != 1 {
		t.Errorf("geometry fetched %d times, want 1", got)
	}
}

func TestMapSelectionAndZoom(t *testing.T) {
	g := worldGeometry(t)
	f := newFixture(t, func(context.Context) (*geo.Geometry, error) { return g, nil })
	f.start(t)
	ctx := context.Background()

	var selected []string
	f.m.OnCountrySelected(func(info geo.Info) { selected = append(selected, info.Country) })

	if _, err := f.m.SetStep(ctx, 3); err != nil {
		t.Fatal(err)
	}
	frame, err := f.m.SetYear(ctx, 2023)
	if err != nil {
		t.Fatal(err)
	}
	if !frame.Map.Ready || len(frame.Map.Outlines) != 4 {
		t.Fatalf("map ready=%v outlines=%d", frame.Map.Ready, len(frame.Map.Outlines))
	}
	// Ecuador has production but no outline.
	if got := len(frame.Map.Bubbles); got != 4 {
		t.Errorf("bubbles = %d, want 4", got)
	}

	frame, err = f.m.SelectCountry(ctx, "Ivory Coast")
	if err != nil {
		t.Fatal(err)
	}
	if frame.Info == nil || frame.Info.Country != "Côte d'Ivoire" || frame.Info.Year != 2023 {
		t.Fatalf("info = %+v", frame.Info)
	}
	if len(frame.Info.Lines) != 3 {
		t.Errorf("info lines = %v", frame.Info.Lines)
	}

	// 1963 has no Côte d'Ivoire production, so the panel closes.
	frame, err = f.m.SetYear(ctx, 1963)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Info != nil {
		t.Errorf("info still open for a year without data: %+v", frame.Info)
	}

	b := frame.Map.Bubbles[0]
	frame, err = f.m.Handle(ctx, SelectAt{X: b.X, Y: b.Y})
	if err != nil {
		t.Fatal(err)
	}
	if frame.Info == nil || frame.Info.Country != b.Country {
		t.Errorf("SelectAt(%s) info = %+v", b.Country, frame.Info)
	}
	if diff := cmp.Diff([]string{"Côte d'Ivoire", b.Country}, selected); diff != "" {
		t.Errorf("selection handler calls (-want +got):\n%s", diff)
	}

	frame, _ = f.m.Handle(ctx, CloseInfo{})
	if frame.Info != nil {
		t.Error("CloseInfo left the panel open")
	}

	frame, _ = f.m.Handle(ctx, Zoom{Factor: geo.ZoomInFactor})
	if frame.Map.Transform.K != 1.5 {
		t.Errorf("zoomed K = %v, want 1.5", frame.Map.Transform.K)
	}
	frame, _ = f.m.Handle(ctx, ResetZoom{})
	if frame.Map.Transform != geo.Identity {
		t.Errorf("reset transform = %+v", frame.Map.Transform)
	}

	// Leaving the map closes nothing visible but drops the map frame.
	frame, _ = f.m.SetStep(ctx, 0)
	if frame.Map != nil || frame.Info != nil {
		t.Error("bubble step carries map state")
	}
}

func TestSelectAtDatasetNameThatIsAlsoGeoAlias(t *testing.T) {
	// FAOSTAT's "Congo" is the Republic of the Congo, whose geometry is
	// also named "Congo".
	g, err := geo.Parse([]byte(`{"type":"FeatureCollection","features":[`+
		`{"type":"Feature","properties":{"NAME":"Congo"},"geometry":{"type":"Polygon","coordinates":`+square(15, -1, 3)+`}}]}`), "")
	if err != nil {
		t.Fatalf("geo.Parse: %v", err)
	}
	records := []dataset.Record{{Country: "Congo", Element: dataset.ElementProduction, Year: 2023, Value: 12_000}}
	f := newFixture(t, func(context.Context) (*geo.Geometry, error) { return g, nil }, WithDatasetLoader(staticLoader(records)))
	f.start(t)
	ctx := context.Background()

	frame, err := f.m.SetStep(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if frame, err = f.m.SetYear(ctx, 2023); err != nil {
		t.Fatal(err)
	}
	if len(frame.Map.Bubbles) != 1 {
		t.Fatalf("bubbles = %d, want 1", len(frame.Map.Bubbles))
	}
	b := frame.Map.Bubbles[0]
	frame, err = f.m.Handle(ctx, SelectAt{X: b.X, Y: b.Y})
	if err != nil {
		t.Fatal(err)
	}
	if frame.Info == nil || frame.Info.Country != "Congo" {
		t.Errorf("SelectAt(Congo) info = %+v", frame.Info)
	}
}

func TestResize(t *testing.T) {
	g := worldGeometry(t)
	f := newFixture(t, func(context.Context) (*geo.Geometry, error) { return g, nil })
	f.start(t)
	ctx := context.Background()

	if _, err := f.m.Resize(ctx, 0, 600); !herrors.Is(err, herrors.ErrCodeInvalidCanvas) {
		t.Errorf("Resize(0, 600) error = %v", err)
	}

	frame, err := f.m.Resize(ctx, 800, 500)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Canvas != (bubble.Canvas{Width: 800, Height: 500}) {
		t.Errorf("canvas = %+v", frame.Canvas)
	}
	for _, n := range frame.Nodes {
		if !force.InBounds(n, frame.Canvas, DefaultConfig().Force.Padding) {
			t.Errorf("%s out of bounds after resize", n.ID)
		}
	}

	if _, err := f.m.SetStep(ctx, 3); err != nil {
		t.Fatal(err)
	}
	before := f.m.Frame().Map.Bubbles
	frame, err = f.m.Resize(ctx, 1600, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Map.Bubbles) != len(before) || frame.Map.Bubbles[0].X == before[0].X {
		t.Errorf("map bubbles not refitted: before %+v after %+v", before[0], frame.Map.Bubbles[0])
	}
	if f.geoCalls.Load() != 1 {
		t.Errorf("resize refetched geometry")
	}
}

func TestSharedDataset(t *testing.T) {
	ds := ready.Resolved(NewDataset("shared", cocoaRecords(), DefaultYears))
	ctx := context.Background()
	for range 2 {
		m, err := NewMachine(DefaultConfig(), WithDataset(ds))
		if err != nil {
			t.Fatal(err)
		}
		if got := m.LoadDataset(ctx, "ignored"); got != ds {
			t.Error("LoadDataset replaced an attached dataset")
		}
		frame, err := m.Start(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if frame.Total == 0 {
			t.Error("shared dataset produced an empty frame")
		}
	}
}

func TestLoadWithoutLoader(t *testing.T) {
	m, err := NewMachine(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.LoadDataset(ctx, "cocoa.csv")
	if _, err := m.Start(ctx); !herrors.Is(err, herrors.ErrCodeDatasetLoad) {
		t.Errorf("Start error = %v", err)
	}
}

func TestUnknownYearRendersEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steps[0].Year = 1970
	m, err := NewMachine(cfg, WithDatasetLoader(staticLoader(cocoaRecords())))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.LoadDataset(ctx, "cocoa.csv")
	frame, err := m.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Nodes) != 0 || frame.Total != 0 {
		t.Errorf("year without data = %d nodes, total %v", len(frame.Nodes), frame.Total)
	}
}

func TestValidateSteps(t *testing.T) {
	years := aggregate.YearRange{Start: 1963, End: 2023}
	valid := DefaultSteps()
	tests := []struct {
		name  string
		steps func() []Step
		ok    bool
	}{
		{"defaults", func() []Step { return valid }, true},
		{"empty", func() []Step { return nil }, false},
		{"missing id", func() []Step {
			s := DefaultSteps()
			s[1].ID = ""
			return s
		}, false},
		{"duplicate id", func() []Step {
			s := DefaultSteps()
			s[2].ID = s[0].ID
			return s
		}, false},
		{"bad layout", func() []Step {
			s := DefaultSteps()
			s[0].Layout = "spiral"
			return s
		}, false},
		{"year out of range", func() []Step {
			s := DefaultSteps()
			s[3].Year = 1950
			return s
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSteps(tt.steps(), years)
			if (err == nil) != tt.ok {
				t.Fatalf("ValidateSteps() error = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !herrors.Is(err, herrors.ErrCodeInvalidStep) {
				t.Errorf("error code = %s", herrors.GetCode(err))
			}
		})
	}
}
