package sink

import (
	"context"

	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/logger"
)

// Log writes events to the structured log. Useful for local
// development and for hosts where the analytics backend is not yet
// provisioned.
type Log struct {
	logger logger.Logger
}

// NewLog creates a logging sink.
func NewLog() *Log {
	return &Log{logger: logger.Get().Named("sink")}
}

// Deliver logs the event at info level.
func (s *Log) Deliver(ctx context.Context, e model.AnalyticsEvent) error {
	s.logger.Info(ctx, "analytics event",
		logger.String("name", e.Name),
		logger.String("competitor", e.Context.CompetitorSlug),
		logger.String("variant", e.Context.VariantID),
		logger.String("traffic_source", string(e.Context.TrafficSource)),
		logger.Any("params", e.Params),
	)
	return nil
}

// Name identifies the sink.
func (s *Log) Name() string { return "log" }

var _ Sink = (*Log)(nil)
