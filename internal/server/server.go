// Package server exposes the cocoa story over HTTP.
//
// Each client creates a session and drives its own story machine with JSON
// events; frames come back as JSON or in any sink format. A stateless
// /render endpoint serves cached single-step renders through the pipeline.
//
//	POST   /sessions                  start a story, returns the first frame
//	GET    /sessions/{id}             current frame
//	POST   /sessions/{id}/events      apply one event
//	GET    /sessions/{id}/frame.{fmt} current frame as svg, png, pdf, dot
//	DELETE /sessions/{id}             end the story
//	GET    /render                    one step, cached (step, year, country, format)
//	GET    /healthz                   liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	herrors "github.com/matzehuels/harvest/pkg/errors"
	"github.com/matzehuels/harvest/pkg/pipeline"
	"github.com/matzehuels/harvest/pkg/render/sink"
	"github.com/matzehuels/harvest/pkg/session"
	"github.com/matzehuels/harvest/pkg/story"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Server holds the HTTP handlers and their shared state.
type Server struct {
	runner *pipeline.Runner
	store  session.Store
	logger *log.Logger
	source string
	ttl    time.Duration
}

// New creates a server rendering source through runner. Sessions live in
// store and expire after ttl without requests.
func New(runner *pipeline.Runner, store session.Store, logger *log.Logger, source string, ttl time.Duration) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, store: store, logger: logger, source: source, ttl: ttl}
}

// NewFromConfig creates a server with an in-memory session store sized
// from the runner's configuration.
func NewFromConfig(runner *pipeline.Runner, source string) *Server {
	cfg := runner.Config.Server
	return New(runner, session.NewMemoryStore(cfg.MaxSessions), runner.Logger, source, cfg.SessionTTL)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/render", s.handleRender)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleFrame)
			r.Delete("/", s.handleDelete)
			r.Post("/events", s.handleEvent)
			r.Get("/frame.{format}", s.handleFrameAs)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

// =============================================================================
// Sessions
// =============================================================================

type createRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type sessionResponse struct {
	ID        string      `json:"id"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Frame     story.Frame `json:"frame"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	ctx := r.Context()
	m, err := s.runner.NewMachine(ctx, s.source)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Width != 0 || req.Height != 0 {
		if err := herrors.ValidateCanvas(req.Width, req.Height); err != nil {
			s.writeError(w, err)
			return
		}
		if _, err := m.Resize(ctx, req.Width, req.Height); err != nil {
			s.writeError(w, err)
			return
		}
	}
	frame, err := m.Start(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sess := session.New(m, s.ttl)
	if err := s.store.Set(ctx, sess); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Debug("session created", "id", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID, ExpiresAt: sess.ExpiresAt(), Frame: frame})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Machine.Frame())
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	ev, err := req.event()
	if err != nil {
		s.writeError(w, err)
		return
	}
	frame, err := sess.Machine.Handle(r.Context(), ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *Server) handleFrameAs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	format, err := sink.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := sink.Render(r.Context(), sess.Machine.Frame(), format, sink.Options{
		Reference: s.runner.Ref,
		Scale:     pipeline.DefaultScale,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeArtifact(w, format, data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the {id} parameter, writing the error response itself
// when the session is unknown or expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

// =============================================================================
// Stateless render
// =============================================================================

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := pipeline.Options{
		Source:  s.source,
		Country: q.Get("country"),
		Refresh: q.Get("refresh") == "true",
	}
	var err error
	if opts.Step, err = intParam(q.Get("step"), 1); err != nil {
		s.writeError(w, err)
		return
	}
	opts.Step--
	if opts.Year, err = intParam(q.Get("year"), 0); err != nil {
		s.writeError(w, err)
		return
	}
	if opts.Width, err = floatParam(q.Get("width")); err != nil {
		s.writeError(w, err)
		return
	}
	if opts.Height, err = floatParam(q.Get("height")); err != nil {
		s.writeError(w, err)
		return
	}
	format := sink.FormatSVG
	if f := q.Get("format"); f != "" {
		if format, err = sink.ParseFormat(f); err != nil {
			s.writeError(w, err)
			return
		}
	}
	opts.Formats = []sink.Format{format}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if res.CacheInfo.RenderHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeArtifact(w, format, res.Artifacts[format])
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.store.Len()})
}

// =============================================================================
// Responses
// =============================================================================

type errorResponse struct {
	Code    herrors.Code `json:"code"`
	Message string       `json:"message"`
}

// writeError maps err to a status and a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := herrors.HTTPStatus(err)
	code := herrors.GetCode(err)
	switch {
	case errors.Is(err, session.ErrNotFound):
		status, code = http.StatusNotFound, herrors.ErrCodeNotFound
	case errors.Is(err, session.ErrExpired):
		status, code = http.StatusGone, herrors.ErrCodeNotFound
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, herrors.ErrCodeTimeout
	}
	if code == "" {
		code = herrors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: herrors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeArtifact(w http.ResponseWriter, format sink.Format, data []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return herrors.Wrap(herrors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func intParam(s string, fallback int) (int, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, herrors.New(herrors.ErrCodeInvalidInput, "%q is not an integer", s)
	}
	return n, nil
}

func floatParam(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, herrors.New(herrors.ErrCodeInvalidInput, "%q is not a number", s)
	}
	return f, nil
}
