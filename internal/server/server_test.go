package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/goleak"

	"github.com/matzehuels/harvest/pkg/config"
	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/pipeline"
	"github.com/matzehuels/harvest/pkg/session"
	"github.com/matzehuels/harvest/pkg/story"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const cocoaCSV = `Area,Element,Year,Unit,Value
Côte d'Ivoire,Production,1990,t,808000
Côte d'Ivoire,Production,2023,t,2377442
Ghana,Production,1990,t,293000
Ghana,Production,2023,t,653700
Indonesia,Production,2023,t,641741
Brazil,Production,2023,t,296145
`

func square(lon, lat, half float64) string {
	return fmt.Sprintf(`[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]`,
		lon-half, lat-half, lon+half, lat-half, lon+half, lat+half, lon-half, lat+half, lon-half, lat-half)
}

func testRunner(t *testing.T) *pipeline.Runner {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "cocoa.csv")
	if err := os.WriteFile(data, []byte(cocoaCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	world := `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"NAME":"Ghana"},"geometry":{"type":"Polygon","coordinates":` + square(-1, 8, 2) + `}},
{"type":"Feature","properties":{"NAME":"Ivory Coast"},"geometry":{"type":"Polygon","coordinates":` + square(-5.5, 7.5, 2) + `}}
]}`
	geom := filepath.Join(dir, "world.geojson")
	if err := os.WriteFile(geom, []byte(world), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Dataset.Source = data
	cfg.Map.Geometry = geom
	cfg.Canvas.Width, cfg.Canvas.Height = 600, 400

	r := pipeline.NewRunner(cfg, nil, nil, log.New(io.Discard))
	t.Cleanup(func() { r.Close() })
	return r
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	r := testRunner(t)
	s := New(r, session.NewMemoryStore(0), r.Logger, "", time.Minute)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func createSession(t *testing.T, ts *httptest.Server) sessionResponse {
	t.Helper()
	resp := do(t, ts, http.MethodPost, "/sessions", createRequest{Width: 800, Height: 600})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return decode[sessionResponse](t, resp)
}

func TestHealth(t *testing.T) {
	_, ts := testServer(t)
	resp := do(t, ts, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, ts := testServer(t)
	sess := createSession(t, ts)

	if sess.ID == "" {
		t.Fatal("empty session id")
	}
	if sess.Frame.StepIndex != 0 || sess.Frame.Canvas.Width != 800 {
		t.Errorf("first frame step %d canvas %gx%g", sess.Frame.StepIndex, sess.Frame.Canvas.Width, sess.Frame.Canvas.Height)
	}
	if s.store.Len() != 1 {
		t.Errorf("store has %d sessions", s.store.Len())
	}

	resp := do(t, ts, http.MethodPost, "/sessions/"+sess.ID+"/events", eventRequest{Type: "scroll", Index: 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scroll status = %d", resp.StatusCode)
	}
	frame := decode[story.Frame](t, resp)
	if frame.StepIndex != 3 || frame.Mode != story.ModeMap {
		t.Fatalf("after scroll: step %d mode %s", frame.StepIndex, frame.Mode)
	}

	resp = do(t, ts, http.MethodPost, "/sessions/"+sess.ID+"/events", eventRequest{Type: "slide", Year: 1990})
	frame = decode[story.Frame](t, resp)
	if frame.Year != 1990 {
		t.Errorf("after slide Year = %d", frame.Year)
	}

	resp = do(t, ts, http.MethodPost, "/sessions/"+sess.ID+"/events", eventRequest{Type: "select", Country: "Ghana"})
	frame = decode[story.Frame](t, resp)
	if frame.Info == nil || frame.Info.Year != 1990 {
		t.Errorf("info panel = %+v", frame.Info)
	}

	resp = do(t, ts, http.MethodGet, "/sessions/"+sess.ID, nil)
	if got := decode[story.Frame](t, resp); got.StepIndex != 3 || got.Year != 1990 {
		t.Errorf("GET frame step %d year %d", got.StepIndex, got.Year)
	}

	resp = do(t, ts, http.MethodGet, "/sessions/"+sess.ID+"/frame.svg", nil)
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp = do(t, ts, http.MethodDelete, "/sessions/"+sess.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	resp = do(t, ts, http.MethodGet, "/sessions/"+sess.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("after delete status = %d", resp.StatusCode)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	_, ts := testServer(t)
	a := createSession(t, ts)
	b := createSession(t, ts)

	do(t, ts, http.MethodPost, "/sessions/"+a.ID+"/events", eventRequest{Type: "scroll", Index: 2})

	resp := do(t, ts, http.MethodGet, "/sessions/"+b.ID, nil)
	if got := decode[story.Frame](t, resp); got.StepIndex != 0 {
		t.Errorf("session b moved to step %d", got.StepIndex)
	}
}

func TestEventErrors(t *testing.T) {
	_, ts := testServer(t)
	sess := createSession(t, ts)

	tests := []struct {
		name   string
		body   any
		status int
		code   herrors.Code
	}{
		{"unknown type", eventRequest{Type: "jump"}, http.StatusBadRequest, herrors.ErrCodeInvalidInput},
		{"missing type", eventRequest{}, http.StatusBadRequest, herrors.ErrCodeInvalidInput},
		{"slider disabled", eventRequest{Type: "slide", Year: 1990}, http.StatusConflict, herrors.ErrCodeSliderDisabled},
		{"step out of range", eventRequest{Type: "scroll", Index: 9}, http.StatusBadRequest, herrors.ErrCodeInvalidStep},
		{"unknown field", map[string]any{"type": "scroll", "step": 1}, http.StatusBadRequest, herrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, http.MethodPost, "/sessions/"+sess.ID+"/events", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := decode[errorResponse](t, resp); got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
}

func TestUnknownSession(t *testing.T) {
	_, ts := testServer(t)
	resp := do(t, ts, http.MethodPost, "/sessions/nope/events", eventRequest{Type: "scroll"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRender(t *testing.T) {
	_, ts := testServer(t)

	resp := do(t, ts, http.MethodGet, "/render?step=4&year=1990&format=json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q", resp.Header.Get("X-Cache"))
	}
	frame := decode[story.Frame](t, resp)
	if frame.StepIndex != 3 || frame.Year != 1990 {
		t.Errorf("frame step %d year %d", frame.StepIndex, frame.Year)
	}

	resp = do(t, ts, http.MethodGet, "/render?step=x", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad step status = %d", resp.StatusCode)
	}
	resp = do(t, ts, http.MethodGet, "/render?format=gif", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d", resp.StatusCode)
	}
}

func TestRunShutsDown(t *testing.T) {
	r := testRunner(t)
	s := New(r, session.NewMemoryStore(0), r.Logger, "", time.Minute)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, Options{Listener: ln, Ready: func(addr string) { ready <- addr }})
	}()

	addr := <-ready
	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatchReloadsDataset(t *testing.T) {
	r := testRunner(t)
	s := New(r, session.NewMemoryStore(0), r.Logger, "", time.Minute)
	source := r.Config.Dataset.Source

	before, err := r.LoadDataset(context.Background(), source)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watchDataset(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	updated := cocoaCSV + "Ecuador,Production,2023,t,375719\n"
	if err := os.WriteFile(source, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ds, err := r.LoadDataset(context.Background(), source)
		if err == nil && len(ds.Records) > len(before.Records) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("dataset was not reloaded")
}

func TestWatchIgnoresURL(t *testing.T) {
	r := testRunner(t)
	s := New(r, session.NewMemoryStore(0), r.Logger, "https://example.org/cocoa.csv", time.Minute)
	if err := s.watchDataset(context.Background()); err != nil {
		t.Errorf("watchDataset = %v", err)
	}
}

func TestEventRequestTypes(t *testing.T) {
	for _, typ := range []string{"scroll", "slide", "select_at", "close_info", "pan", "reset_zoom"} {
		if _, err := (eventRequest{Type: typ}).event(); err != nil {
			t.Errorf("%s: %v", typ, err)
		}
	}
	if _, err := (eventRequest{Type: "zoom"}).event(); !herrors.Is(err, herrors.ErrCodeInvalidInput) {
		t.Errorf("zoom without factor = %v", err)
	}
	if _, err := (eventRequest{Type: "resize", Width: -1, Height: 2}).event(); !herrors.Is(err, herrors.ErrCodeInvalidCanvas) {
		t.Errorf("resize with negative width = %v", err)
	}
	if ev, _ := (eventRequest{Type: "select", Country: "Ghana"}).event(); !strings.EqualFold(ev.(story.Select).Country, "ghana") {
		t.Errorf("select event = %#v", ev)
	}
}
