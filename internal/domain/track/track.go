// Package track emits named analytics events carrying fixed experiment
// context.
//
// Track never returns an error and never blocks: events are stamped,
// merged with their context, and handed to the delivery queue. If the
// queue is full or absent the event is silently dropped; tracking
// failures must never affect page rendering.
package track

import (
	"context"
	"time"

	"github.com/okian/cohort/internal/adapters/mq/queue"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/metrics"
)

// Tracker fans analytics events into the delivery queue.
type Tracker struct {
	queue queue.Queue
	now   func() time.Time
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithNowFunc overrides the event timestamp clock for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a Tracker writing to q. A nil queue produces a tracker
// whose calls are valid no-ops, mirroring a host without analytics.
func New(q queue.Queue, opts ...Option) *Tracker {
	t := &Tracker{
		queue: q,
		now:   time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Track emits one event. The experiment context is attached to the
// event verbatim; params carry the event-specific extras.
func (t *Tracker) Track(ctx context.Context, name string, ectx model.EventContext, params map[string]string) {
	metrics.RecordEventTracked(name)

	if t.queue == nil {
		metrics.RecordEventDropped("no_sink")
		return
	}

	e := model.AnalyticsEvent{
		Name:    name,
		Context: ectx,
		Params:  params,
		TS:      t.now(),
	}

	// Enqueue already records the drop reason on failure.
	_ = t.queue.Enqueue(ctx, e)
}

// Bind returns an emit closure with ectx fixed. Monitors use this so
// every signal of a page lifetime carries the same context.
func (t *Tracker) Bind(ectx model.EventContext) func(ctx context.Context, name string, params map[string]string) {
	return func(ctx context.Context, name string, params map[string]string) {
		t.Track(ctx, name, ectx, params)
	}
}
