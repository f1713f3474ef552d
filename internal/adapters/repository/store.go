// Package repository defines the visitor state store interface and errors.
//
// The store is the cookie-jar boundary of the system: small string
// values with an expiry, written per visitor. Concurrent writers get
// last-writer-wins semantics; no cross-writer coordination is provided.
package repository

import (
	"context"
	"net/url"
	"time"
)

// Store provides read/write access to expiring key-value visitor state.
type Store interface {
	// Set writes value under key with the given TTL, replacing any
	// previous value and TTL. A non-positive TTL is rejected.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value stored under key.
	// Returns ErrNotFound if the key is absent or its TTL has lapsed.
	Get(ctx context.Context, key string) (string, error)

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns all live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Len returns the number of live entries.
	Len(ctx context.Context) int

	// Close releases store resources.
	Close() error
}

// encodeValue applies the URL-encoding used for all persisted values.
func encodeValue(v string) string {
	return url.QueryEscape(v)
}

// decodeValue reverses encodeValue. An undecodable value is reported
// as an error so callers treat the entry as corrupt rather than
// returning garbage.
func decodeValue(v string) (string, error) {
	return url.QueryUnescape(v)
}
