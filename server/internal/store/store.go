package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a cached label together with the time it was stored.
type Entry struct {
	Label     int
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory prediction cache keyed by feature row key.
// A background goroutine (Run) periodically evicts entries older than the TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the label for key.
func (s *Store) Put(key string, label int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &Entry{Label: label, UpdatedAt: s.now()}
}

// Get returns the label cached for key. Entries past the TTL are reported
// as missing even before Run evicts them.
func (s *Store) Get(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return 0, false
	}
	return e.Label, true
}

// List returns a copy of all live entries keyed by feature row key.
func (s *Store) List() map[string]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make(map[string]Entry, len(s.data))
	for k, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out[k] = *e
		}
	}
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Reset drops every entry. It returns the number of entries removed.
func (s *Store) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = make(map[string]*Entry)
	return n
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for k, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted cached predictions", "count", n)
			}
		}
	}
}
