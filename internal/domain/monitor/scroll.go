// Package monitor implements the page-lifetime engagement monitors:
// scroll depth and time on page. Each monitor is an explicit
// subscription object with a single teardown method; the orchestrator
// composes them per session.
package monitor

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/okian/cohort/internal/domain/dedupe"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/metrics"
)

// EmitFunc forwards a named analytics event with extra params.
// The orchestrator binds the tracker and the session's event context
// into this closure.
type EmitFunc func(ctx context.Context, name string, params map[string]string)

// defaultThresholds are the scroll depth percentages that emit events.
var defaultThresholds = []int{25, 50, 75, 100}

// ScrollMonitor de-duplicates crossings of scroll-depth thresholds.
type ScrollMonitor struct {
	emit       EmitFunc
	guard      dedupe.Guard
	thresholds []int

	mu     sync.Mutex
	closed bool
}

// ScrollOption applies a configuration option to the ScrollMonitor.
type ScrollOption func(*ScrollMonitor)

// WithThresholds overrides the emitted depth thresholds.
// Values must be ascending percentages.
func WithThresholds(thresholds []int) ScrollOption {
	return func(m *ScrollMonitor) {
		if len(thresholds) > 0 {
			m.thresholds = thresholds
		}
	}
}

// NewScrollMonitor creates a monitor that reports through emit.
func NewScrollMonitor(emit EmitFunc, opts ...ScrollOption) *ScrollMonitor {
	m := &ScrollMonitor{
		emit:       emit,
		guard:      dedupe.NewGuard(),
		thresholds: defaultThresholds,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Observe processes one scroll sample.
//
// Every threshold at or below the current depth that has not fired yet
// this page lifetime is emitted once, in ascending order. Fast scrolls
// that jump past several thresholds therefore emit all intervening
// ones, and jitter around an already-fired threshold emits nothing.
func (m *ScrollMonitor) Observe(ctx context.Context, position, pageHeight, viewport float64) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	pct := depthPercent(position, pageHeight, viewport)

	for _, threshold := range m.thresholds {
		if pct < threshold {
			break
		}
		if m.guard.SeenAndRecord(ctx, scrollKey(threshold)) {
			continue
		}
		m.emit(ctx, model.EventScrollDepth, map[string]string{
			"percentage": strconv.Itoa(threshold),
		})
		metrics.RecordScrollThreshold(threshold)
	}
}

// Stop detaches the monitor; later Observe calls are ignored.
func (m *ScrollMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// depthPercent converts a scroll sample to a 0-100 depth percentage.
// A page that fits the viewport has no scrollable range and counts as
// fully read.
func depthPercent(position, pageHeight, viewport float64) int {
	scrollable := pageHeight - viewport
	if scrollable <= 0 {
		return 100
	}
	pct := int(math.Round(position / scrollable * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func scrollKey(threshold int) string {
	return "scroll_" + strconv.Itoa(threshold)
}
