// Package dedupe provides at-most-once guards for analytics signals.
package dedupe

import (
	"context"
	"sync"
)

// Guard records seen signal IDs to ensure at-most-once emission.
// Scroll thresholds and the bounce flag are guarded per page lifetime,
// so the key space stays tiny and needs no eviction.
type Guard interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing it to fire again.
	// Only used when a signal was marked but failed to be emitted.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of recorded IDs.
	Size() int64
}

// memoryGuard implements Guard with a mutex-protected set.
type memoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGuard creates an empty in-memory guard.
func NewGuard() Guard {
	return &memoryGuard{seen: make(map[string]struct{})}
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (g *memoryGuard) SeenAndRecord(ctx context.Context, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.seen[id]; exists {
		return true
	}
	g.seen[id] = struct{}{}
	return false
}

// Unrecord removes an ID from the seen set.
func (g *memoryGuard) Unrecord(ctx context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, id)
}

// Size returns the number of recorded IDs.
func (g *memoryGuard) Size() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(len(g.seen))
}
