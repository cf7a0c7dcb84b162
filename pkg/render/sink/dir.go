package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/harvest/pkg/story"
)

// Dir is a story renderer that writes every frame into a directory as
// NN-<step>-<year>.<ext>. Write errors are logged and kept; see Err.
type Dir struct {
	ctx    context.Context
	path   string
	format Format
	opts   Options
	logger *log.Logger

	written []string
	err     error
}

// NewDir creates the directory if needed.
func NewDir(ctx context.Context, path string, format Format, opts Options, logger *log.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dir{ctx: ctx, path: path, format: format, opts: opts, logger: logger}, nil
}

func (d *Dir) Loading(msg string) { d.logger.Info(msg) }

func (d *Dir) Failed(msg string) { d.logger.Error(msg) }

func (d *Dir) Render(f story.Frame) {
	data, err := Render(d.ctx, f, d.format, d.opts)
	if err != nil {
		d.fail(fmt.Errorf("render step %d: %w", f.StepIndex+1, err))
		return
	}
	name := filepath.Join(d.path, FrameName(f, d.format))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		d.fail(fmt.Errorf("write %s: %w", name, err))
		return
	}
	d.written = append(d.written, name)
	d.logger.Debug("wrote frame", "file", name, "bytes", len(data))
}

func (d *Dir) fail(err error) {
	d.logger.Error("frame not written", "err", err)
	if d.err == nil {
		d.err = err
	}
}

// Written lists the files written so far, in render order.
func (d *Dir) Written() []string { return d.written }

// Err returns the first write error.
func (d *Dir) Err() error { return d.err }

// FrameName returns the file name for a frame. Re-rendering the same step
// and year overwrites the earlier file.
func FrameName(f story.Frame, format Format) string {
	return fmt.Sprintf("%02d-%s-%d.%s", f.StepIndex+1, slug(f.Step.ID), f.Year, format.Ext())
}
