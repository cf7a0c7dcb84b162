package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/harvest/pkg/story"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows a progress indicator while the dataset loads. It is a
// story.Renderer: Loading starts it, the first frame or failure stops it.
type Spinner struct {
	w   io.Writer
	ctx context.Context

	mu      sync.Mutex
	message string
	cancel  context.CancelFunc
	stopped chan struct{}
}

// newSpinner creates a spinner that writes to w and stops with ctx.
func newSpinner(ctx context.Context, w io.Writer) *Spinner {
	return &Spinner{w: w, ctx: ctx}
}

// Start begins the animation. Starting a running spinner only replaces its
// message.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.stopped = make(chan struct{})
	go s.run(ctx, s.stopped)
}

func (s *Spinner) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := spinnerFrames[i%len(spinnerFrames)]
			fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
			s.mu.Unlock()
		}
	}
}

// Stop stops the animation and clears the line. It is safe to call on a
// spinner that never started.
func (s *Spinner) Stop() {
	s.mu.Lock()
	cancel, stopped := s.cancel, s.stopped
	s.cancel, s.stopped = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// Loading implements story.Renderer.
func (s *Spinner) Loading(msg string) { s.Start(msg) }

// Failed implements story.Renderer.
func (s *Spinner) Failed(msg string) {
	s.Stop()
	printError("%s", msg)
}

// Render implements story.Renderer.
func (s *Spinner) Render(story.Frame) { s.Stop() }

// fanout forwards renderer calls to several renderers in order.
type fanout []story.Renderer

func (f fanout) Loading(msg string) {
	for _, r := range f {
		r.Loading(msg)
	}
}

func (f fanout) Failed(msg string) {
	for _, r := range f {
		r.Failed(msg)
	}
}

func (f fanout) Render(frame story.Frame) {
	for _, r := range f {
		r.Render(frame)
	}
}
