package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore keeps entries in a map for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore returns an empty store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns ErrExpired (and drops the entry) once the TTL has passed.
func (s *MemoryStore) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.ExpiredAt(s.now()) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && current == entry {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, ErrExpired
	}

	e := *entry
	return &e, nil
}

// Set stores data under key, replacing any previous entry.
func (s *MemoryStore) Set(key string, data json.RawMessage) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = newEntry(key, data, s.now(), s.ttl)
	return nil
}

// Delete is idempotent.
func (s *MemoryStore) Delete(key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// CleanupExpired drops every expired entry and returns how many were removed.
func (s *MemoryStore) CleanupExpired() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, e := range s.entries {
		if e.ExpiredAt(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len counts entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TTL returns the configured time to live.
func (s *MemoryStore) TTL() time.Duration {
	return s.ttl
}
