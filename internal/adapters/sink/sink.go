// Package sink defines the outbound analytics boundary.
//
// A Sink receives fully-formed analytics events. Delivery is
// fire-and-forget: failures are logged and counted, never retried, and
// never surfaced to the code that emitted the event.
package sink

import (
	"context"

	"github.com/okian/cohort/internal/domain/model"
)

// Sink delivers analytics events to an external system.
type Sink interface {
	// Deliver sends one event, honoring ctx for cancellation.
	Deliver(ctx context.Context, e model.AnalyticsEvent) error

	// Name identifies the sink in logs and metrics.
	Name() string
}

// Noop discards every event. Used when no sink is configured, so
// tracking calls stay valid no-ops on hosts without analytics.
type Noop struct{}

// NewNoop creates a discarding sink.
func NewNoop() Noop { return Noop{} }

// Deliver discards the event.
func (Noop) Deliver(ctx context.Context, e model.AnalyticsEvent) error { return nil }

// Name identifies the sink.
func (Noop) Name() string { return "noop" }

var _ Sink = Noop{}
