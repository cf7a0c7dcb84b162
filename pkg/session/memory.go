package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process session store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
}

// NewMemoryStore creates a store holding at most limit sessions (0 means
// DefaultMaxSessions).
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &MemoryStore{sessions: make(map[string]*Session), limit: limit}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired() {
		m.Delete(ctx, id)
		return nil, ErrExpired
	}
	s.Touch()
	return s, nil
}

func (m *MemoryStore) Set(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; !exists && len(m.sessions) >= m.limit {
		m.evictLocked()
	}
	m.sessions[s.ID] = s
	return nil
}

// evictLocked drops expired sessions, or the least recently active one if
// none have expired.
func (m *MemoryStore) evictLocked() {
	var oldestID string
	var oldest time.Time
	removed := false
	for id, s := range m.sessions {
		exp := s.ExpiresAt()
		if time.Now().After(exp) {
			delete(m.sessions, id)
			removed = true
			continue
		}
		if oldestID == "" || exp.Before(oldest) {
			oldestID, oldest = id, exp
		}
	}
	if !removed && oldestID != "" {
		delete(m.sessions, oldestID)
	}
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.IsExpired() {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

var _ Store = (*MemoryStore)(nil)
