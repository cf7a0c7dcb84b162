// Package observability lets the CLI and server observe the story engine
// without the engine importing a logging or metrics backend.
//
// Libraries emit events through the registered hooks; the defaults do
// nothing. Register implementations once at startup:
//
//	observability.SetStoryHooks(logHooks{logger})
//	observability.SetCacheHooks(logHooks{logger})
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Story Hooks
// =============================================================================

// StoryHooks receives events from the view state machine.
type StoryHooks interface {
	OnLoadStart(ctx context.Context, source string)
	OnLoadComplete(ctx context.Context, source string, records int, duration time.Duration, err error)

	// OnTransition fires after a step change or slider update settles.
	OnTransition(ctx context.Context, from, to int, layout string, year int)

	// OnRebuild fires after each builder + simulator cycle.
	OnRebuild(ctx context.Context, layout string, year, nodes int, duration time.Duration)

	OnGeometry(ctx context.Context, features int, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives cache lookups keyed by resource kind.
type CacheHooks interface {
	OnHit(ctx context.Context, kind, key string)
	OnMiss(ctx context.Context, kind, key string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives outgoing downloads. status is 0 on transport failure.
type HTTPHooks interface {
	OnRequest(ctx context.Context, url string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

type NoopStoryHooks struct{}

func (NoopStoryHooks) OnLoadStart(context.Context, string)                               {}
func (NoopStoryHooks) OnLoadComplete(context.Context, string, int, time.Duration, error) {}
func (NoopStoryHooks) OnTransition(context.Context, int, int, string, int)               {}
func (NoopStoryHooks) OnRebuild(context.Context, string, int, int, time.Duration)        {}
func (NoopStoryHooks) OnGeometry(context.Context, int, error)                            {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnHit(context.Context, string, string)  {}
func (NoopCacheHooks) OnMiss(context.Context, string, string) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	storyHooks StoryHooks = NoopStoryHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetStoryHooks registers story hooks. Nil is ignored.
func SetStoryHooks(h StoryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storyHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

func Story() StoryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storyHooks
}

func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores the no-op defaults. Tests use it to undo registrations.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	storyHooks = NoopStoryHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
