package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	s := New(nil, time.Hour)
	if s.ID == "" || len(s.ID) != 36 {
		t.Fatalf("session ID %q is not a UUID", s.ID)
	}
	if err := store.Set(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, s.ID)
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after delete", store.Len())
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	idle := New(nil, time.Nanosecond)
	live := New(nil, time.Hour)
	store.Set(ctx, idle)
	store.Set(ctx, live)
	time.Sleep(time.Millisecond)

	if _, err := store.Get(ctx, idle.ID); !errors.Is(err, ErrExpired) {
		t.Errorf("Get(idle) error = %v, want ErrExpired", err)
	}
	if _, err := store.Get(ctx, idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session was not removed: %v", err)
	}

	store.Set(ctx, New(nil, time.Nanosecond))
	time.Sleep(time.Millisecond)
	n, err := store.Cleanup(ctx)
	if err != nil || n != 1 {
		t.Errorf("Cleanup() = %d, %v, want 1", n, err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want only the live session", store.Len())
	}
}

func TestTouchExtendsLife(t *testing.T) {
	s := New(nil, time.Minute)
	before := s.ExpiresAt()
	time.Sleep(time.Millisecond)
	s.Touch()
	if !s.ExpiresAt().After(before) {
		t.Error("Touch() did not extend expiry")
	}
	if s.IsExpired() {
		t.Error("fresh session reported expired")
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	a, b, c := New(nil, time.Hour), New(nil, time.Hour), New(nil, time.Hour)
	store.Set(ctx, a)
	time.Sleep(time.Millisecond)
	store.Set(ctx, b)
	time.Sleep(time.Millisecond)
	// Using a makes b the least recently active.
	if _, err := store.Get(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	store.Set(ctx, c)

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, err := store.Get(ctx, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("b should have been evicted, Get error = %v", err)
	}
	for _, s := range []*Session{a, c} {
		if _, err := store.Get(ctx, s.ID); err != nil {
			t.Errorf("Get(%s) error = %v", s.ID, err)
		}
	}

	// Re-setting an existing session never evicts.
	store.Set(ctx, a)
	if store.Len() != 2 {
		t.Errorf("Len() = %d after re-set", store.Len())
	}
}
