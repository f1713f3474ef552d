package service

import (
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	"github.com/okian/cohort/internal/adapters/sink"
	"github.com/okian/cohort/internal/config"
	"github.com/okian/cohort/internal/domain/model"
	"github.com/okian/cohort/pkg/logger"
)

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithWorkerCount sets the number of sink delivery workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the analytics event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStore injects a visitor state store, overriding the backend
// selection. Useful for tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithStoreBackend selects the visitor store built at Start.
func WithStoreBackend(backend, sqlitePath string) Option {
	return func(s *Service) {
		s.storeBackend = backend
		s.sqlitePath = sqlitePath
	}
}

// WithSink injects an analytics sink, overriding the kind selection.
func WithSink(snk sink.Sink) Option {
	return func(s *Service) {
		s.snk = snk
	}
}

// WithSinkKind selects the sink built at Start.
func WithSinkKind(kind, url string) Option {
	return func(s *Service) {
		s.sinkKind = kind
		s.sinkURL = url
	}
}

// WithHeartbeatInterval sets the time-on-page heartbeat cadence.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.heartbeat = interval
		}
	}
}

// WithBounceThreshold sets the dwell time under which a leave bounces.
func WithBounceThreshold(threshold time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.bounceThreshold = threshold
		}
	}
}

// WithScrollThresholds sets the emitted scroll depth percentages.
func WithScrollThresholds(thresholds []int) Option {
	return func(s *Service) {
		if len(thresholds) > 0 {
			s.scrollThresholds = thresholds
		}
	}
}

// WithSessionIdleTimeout sets how long a silent session survives.
func WithSessionIdleTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.sessionIdleTimeout = timeout
		}
	}
}

// WithTrafficTTL sets how long a traffic source classification sticks.
func WithTrafficTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.trafficTTL = ttl
		}
	}
}

// WithAssignmentTTL sets how long a bucketed assignment sticks.
func WithAssignmentTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.assignmentTTL = ttl
		}
	}
}

// WithForcedTTL sets how long a forced assignment sticks.
func WithForcedTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.forcedTTL = ttl
		}
	}
}

// WithRandFunc sets the random source used for weighted draws.
func WithRandFunc(rng func() float64) Option {
	return func(s *Service) {
		s.rng = rng
	}
}

// WithNowFunc sets the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithExperiments registers the experiments this deployment serves.
// The first experiment becomes the default for requests naming none.
func WithExperiments(exps []model.Experiment) Option {
	return func(s *Service) {
		for i, exp := range exps {
			s.experiments[exp.Slug] = exp
			if i == 0 {
				s.defaultSlug = exp.Slug
			}
		}
	}
}

// FromConfig derives service options from loaded configuration.
func FromConfig(cfg *config.Config) []Option {
	exps := make([]model.Experiment, 0, len(cfg.Experiments))
	for _, ec := range cfg.Experiments {
		variants := make([]model.Variant, 0, len(ec.Variants))
		for _, vc := range ec.Variants {
			variants = append(variants, model.Variant{ID: vc.ID, Weight: vc.Weight})
		}
		exps = append(exps, model.Experiment{Slug: ec.Slug, Variants: variants})
	}

	day := 24 * time.Hour
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.EventQueueSize),
		WithStoreBackend(cfg.StoreBackend, cfg.SQLitePath),
		WithSinkKind(cfg.Sink, cfg.SinkURL),
		WithHeartbeatInterval(time.Duration(cfg.HeartbeatSeconds) * time.Second),
		WithBounceThreshold(time.Duration(cfg.BounceThresholdSeconds) * time.Second),
		WithScrollThresholds(cfg.ScrollThresholds),
		WithSessionIdleTimeout(time.Duration(cfg.SessionIdleSeconds) * time.Second),
		WithTrafficTTL(time.Duration(cfg.TrafficTTLDays) * day),
		WithAssignmentTTL(time.Duration(cfg.AssignmentTTLDays) * day),
		WithForcedTTL(time.Duration(cfg.ForcedTTLDays) * day),
		WithExperiments(exps),
	}
}
