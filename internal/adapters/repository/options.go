// Package repository defines the visitor state store interface and errors.
package repository

import "time"

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithJanitorInterval sets how often the background janitor reaps
// expired entries.
func WithJanitorInterval(interval time.Duration) MemOption {
	return func(s *MemStore) {
		if interval > 0 {
			s.janitorInterval = interval
		}
	}
}

// WithNowFunc overrides the store clock. Used by tests to step time
// across TTL boundaries without sleeping.
func WithNowFunc(now func() time.Time) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}
