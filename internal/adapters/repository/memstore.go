package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/cohort/pkg/metrics"
)

// Default memstore configuration constants.
const (
	defaultJanitorInterval = 1 * time.Minute
)

// entry holds one stored value and its expiry deadline.
type entry struct {
	value     string
	expiresAt time.Time
}

// MemStore implements Store with an in-memory map and a background
// janitor that reaps expired entries. Reads also expire lazily, so an
// entry is never observable past its TTL regardless of janitor timing.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	closed  bool

	janitorInterval time.Duration
	now             func() time.Time
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// NewMemStore creates a new in-memory store with configuration options
// and starts its janitor.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		entries:         make(map[string]entry),
		janitorInterval: defaultJanitorInterval,
		now:             time.Now,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	go s.janitor()

	return s
}

// Set writes value under key with the given TTL.
func (s *MemStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.entries[key] = entry{
		value:     encodeValue(value),
		expiresAt: s.now().Add(ttl),
	}
	metrics.UpdateStoreEntries(len(s.entries))
	return nil
}

// Get returns the live value under key, or ErrNotFound.
func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if s.now().After(e.expiresAt) {
		// Lazy expiry: the janitor may not have run yet.
		s.mu.Lock()
		if cur, still := s.entries[key]; still && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
			metrics.RecordStoreExpiry()
		}
		s.mu.Unlock()
		return "", ErrNotFound
	}

	v, err := decodeValue(e.value)
	if err != nil {
		// Corrupt entry: drop it so the caller re-creates state.
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return v, nil
}

// Remove deletes the key.
func (s *MemStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	metrics.UpdateStoreEntries(len(s.entries))
	return nil
}

// Keys returns all live keys with the given prefix.
func (s *MemStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of live entries.
func (s *MemStore) Len(ctx context.Context) int {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the janitor and rejects further writes.
func (s *MemStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	return nil
}

// janitor periodically reaps expired entries.
func (s *MemStore) janitor() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

// reap removes every expired entry in one pass.
func (s *MemStore) reap() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
			metrics.RecordStoreExpiry()
		}
	}
	metrics.UpdateStoreEntries(len(s.entries))
}

var _ Store = (*MemStore)(nil)
