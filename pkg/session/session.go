// Package session keeps story machines alive between HTTP requests.
//
// Each viewer of the served story gets a [Session] wrapping its own
// [story.Machine]: its step, year, canvas size, position cache and overlay
// are never shared with other viewers. Sessions live in memory only and
// expire after a period without requests.
//
// # Usage
//
//	store := session.NewMemoryStore(session.DefaultMaxSessions)
//	sess := session.New(machine, session.DefaultTTL)
//	store.Set(ctx, sess)
//
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
//	    // start a new story
//	}
//
// [story.Machine]: github.com/matzehuels/harvest/pkg/story.Machine
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/harvest/pkg/story"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a session has been idle past its TTL.
	ErrExpired = errors.New("session expired")
)

// Default limits.
const (
	// DefaultTTL is how long a session survives without requests.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxSessions bounds the memory store.
	DefaultMaxSessions = 1024
)

// Session is one viewer's story.
type Session struct {
	ID        string
	Machine   *story.Machine
	CreatedAt time.Time

	ttl      time.Duration
	mu       sync.Mutex
	lastSeen time.Time
}

// New wraps a machine in a session with a fresh random ID.
func New(m *story.Machine, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Machine:   m,
		CreatedAt: now,
		ttl:       ttl,
		lastSeen:  now,
	}
}

// Touch records activity, extending the session's life.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// ExpiresAt returns when the session expires without further activity.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Add(s.ttl)
}

// IsExpired reports whether the session has been idle past its TTL.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt())
}

// Store is the interface for session storage backends.
type Store interface {
	// Get returns a live session and marks it active. It returns
	// ErrNotFound for unknown IDs and ErrExpired (removing the session)
	// for idle ones.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session, evicting the least recently used one when the
	// store is full.
	Set(ctx context.Context, s *Session) error

	// Delete removes a session. Unknown IDs are not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)

	// Len returns the number of stored sessions.
	Len() int
}
