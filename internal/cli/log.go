package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Rendered 4 frames (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// =============================================================================
// Observability
// =============================================================================

// logHooks reports engine events at debug level.
type logHooks struct {
	logger *log.Logger
}

func (h logHooks) OnLoadStart(_ context.Context, source string) {
	h.logger.Debug("dataset load started", "source", source)
}

func (h logHooks) OnLoadComplete(_ context.Context, source string, records int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("dataset load failed", "source", source, "err", err)
		return
	}
	h.logger.Debug("dataset load finished", "source", source, "records", records, "duration", d)
}

func (h logHooks) OnTransition(_ context.Context, from, to int, layout string, year int) {
	h.logger.Debug("transition", "from", from, "to", to, "layout", layout, "year", year)
}

func (h logHooks) OnRebuild(_ context.Context, layout string, year, nodes int, d time.Duration) {
	h.logger.Debug("rebuild", "layout", layout, "year", year, "nodes", nodes, "duration", d)
}

func (h logHooks) OnGeometry(_ context.Context, features int, err error) {
	if err != nil {
		h.logger.Debug("geometry failed", "err", err)
		return
	}
	h.logger.Debug("geometry ready", "features", features)
}

func (h logHooks) OnHit(_ context.Context, kind, key string) {
	h.logger.Debug("cache hit", "kind", kind, "key", key)
}

func (h logHooks) OnMiss(_ context.Context, kind, key string) {
	h.logger.Debug("cache miss", "kind", kind, "key", key)
}

func (h logHooks) OnRequest(_ context.Context, url string, status int, d time.Duration) {
	h.logger.Debug("download", "url", url, "status", status, "duration", d)
}
