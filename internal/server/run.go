package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/harvest/pkg/debounce"
	herrors "github.com/matzehuels/harvest/pkg/errors"
)

const (
	shutdownTimeout = 5 * time.Second
	cleanupInterval = time.Minute

	// reloadWait coalesces the burst of events an editor save produces.
	reloadWait = 500 * time.Millisecond
)

// Options configures Run.
type Options struct {
	// Listener overrides Addr; tests pass one bound to port 0.
	Listener net.Listener
	Addr     string
	// Watch reloads a local dataset file when it changes.
	Watch bool
	// Ready, when set, is called once the server accepts connections.
	Ready func(addr string)
}

// Run serves until ctx is cancelled, then shuts down gracefully. Expired
// sessions are swept every minute.
func (s *Server) Run(ctx context.Context, opts Options) error {
	ln := opts.Listener
	if ln == nil {
		var err error
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return herrors.Wrap(herrors.ErrCodeNetwork, err, "listen on %s", opts.Addr)
		}
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving story", "addr", ln.Addr().String(), "source", s.source)
		if opts.Ready != nil {
			opts.Ready(ln.Addr().String())
		}
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return s.sweepSessions(ctx, cleanupInterval)
	})
	if opts.Watch {
		g.Go(func() error {
			return s.watchDataset(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// sweepSessions removes expired sessions every interval until ctx ends.
func (s *Server) sweepSessions(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.store.Cleanup(ctx)
			if err != nil {
				s.logger.Warn("session cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Debug("expired sessions removed", "count", n, "remaining", s.store.Len())
			}
		}
	}
}

// watchDataset reloads the dataset whenever its file changes. The parent
// directory is watched so that editors replacing the file by rename are
// seen too. New sessions get the reloaded data; running ones keep theirs.
func (s *Server) watchDataset(ctx context.Context) error {
	source := s.source
	if source == "" {
		source = s.runner.Config.Dataset.Source
	}
	if herrors.IsURL(source) {
		s.logger.Warn("--watch ignored for remote dataset", "source", source)
		return nil
	}
	path, err := filepath.Abs(source)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return herrors.Wrap(herrors.ErrCodeInvalidPath, err, "watch %s", filepath.Dir(path))
	}

	d := debounce.New(reloadWait)
	defer d.Stop()

	s.logger.Info("watching dataset", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				d.Call(func() { s.reload(ctx, source) })
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "err", err)
		}
	}
}

// reload drops the memoized dataset and loads it again so the next session
// starts without waiting.
func (s *Server) reload(ctx context.Context, source string) {
	s.runner.Forget(source)
	ds, err := s.runner.LoadDataset(ctx, source)
	if err != nil {
		s.logger.Error("dataset reload failed", "source", source, "err", err)
		return
	}
	s.logger.Info("dataset reloaded", "source", source, "records", len(ds.Records))
}
