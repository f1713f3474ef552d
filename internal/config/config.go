// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"runtime"
)

// Store backend identifiers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Sink identifiers.
const (
	SinkNone = "none"
	SinkLog  = "log"
	SinkHTTP = "http"
)

// VariantConfig describes one experiment arm.
type VariantConfig struct {
	// ID is the stable variant identifier persisted in assignments.
	ID string `koanf:"id"`

	// Weight is the traffic share, 0-100. Weights across an
	// experiment should sum to 100; any shortfall falls back to control.
	Weight int `koanf:"weight"`
}

// ExperimentConfig describes one experiment. The first variant is
// always the control arm.
type ExperimentConfig struct {
	Slug     string          `koanf:"slug"`
	Variants []VariantConfig `koanf:"variants"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory analytics event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of sink delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// StoreBackend selects the visitor state store: memory or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// SQLitePath is the database file used when StoreBackend is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// Sink selects the analytics sink: none, log or http.
	Sink string `koanf:"sink"`

	// SinkURL is the collector endpoint used when Sink is http.
	SinkURL string `koanf:"sink_url"`

	// HeartbeatSeconds is the time-on-page heartbeat cadence.
	HeartbeatSeconds int `koanf:"heartbeat_seconds"`

	// BounceThresholdSeconds is the dwell time under which a leave
	// counts as a bounce.
	BounceThresholdSeconds int `koanf:"bounce_threshold_seconds"`

	// ScrollThresholds are the emitted scroll depth percentages.
	ScrollThresholds []int `koanf:"scroll_thresholds"`

	// SessionIdleSeconds reaps sessions that never sent a leave beacon.
	SessionIdleSeconds int `koanf:"session_idle_seconds"`

	// TTLs for persisted visitor state, in days.
	TrafficTTLDays    int `koanf:"traffic_ttl_days"`
	AssignmentTTLDays int `koanf:"assignment_ttl_days"`
	ForcedTTLDays     int `koanf:"forced_ttl_days"`

	// Experiments are the experiments this deployment serves.
	Experiments []ExperimentConfig `koanf:"experiments"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		EventQueueSize:         10_000,
		WorkerCount:            runtime.NumCPU() * 2,
		StoreBackend:           StoreMemory,
		SQLitePath:             "cohort.db",
		Sink:                   SinkNone,
		SinkURL:                "",
		HeartbeatSeconds:       30,
		BounceThresholdSeconds: 10,
		ScrollThresholds:       []int{25, 50, 75, 100},
		SessionIdleSeconds:     900,
		TrafficTTLDays:         30,
		AssignmentTTLDays:      90,
		ForcedTTLDays:          1,
		Experiments: []ExperimentConfig{
			{
				Slug: "comparison-page",
				Variants: []VariantConfig{
					{ID: "control", Weight: 50},
					{ID: "variant-b", Weight: 50},
				},
			},
		},
	}
}

// Validate checks invariants that cannot be expressed in types.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}

	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	switch c.Sink {
	case SinkNone, SinkLog:
	case SinkHTTP:
		if c.SinkURL == "" {
			return fmt.Errorf("%w: sink_url required for http sink", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Sink)
	}

	// Scroll monitors walk thresholds in order and stop at the first one
	// above the current depth, so the list must be ascending.
	prev := 0
	for _, threshold := range c.ScrollThresholds {
		if threshold <= 0 || threshold > 100 {
			return fmt.Errorf("%w: scroll threshold %d out of range", ErrInvalidConfig, threshold)
		}
		if threshold <= prev {
			return fmt.Errorf("%w: scroll thresholds must be strictly ascending", ErrInvalidConfig)
		}
		prev = threshold
	}

	for _, exp := range c.Experiments {
		if exp.Slug == "" {
			return fmt.Errorf("%w: experiment slug must not be empty", ErrInvalidConfig)
		}
		if len(exp.Variants) == 0 {
			return fmt.Errorf("%w: experiment %q has no variants", ErrInvalidConfig, exp.Slug)
		}
		seen := make(map[string]bool, len(exp.Variants))
		total := 0
		for _, v := range exp.Variants {
			if v.ID == "" {
				return fmt.Errorf("%w: experiment %q has a variant with no id", ErrInvalidConfig, exp.Slug)
			}
			if seen[v.ID] {
				return fmt.Errorf("%w: experiment %q repeats variant %q", ErrInvalidConfig, exp.Slug, v.ID)
			}
			seen[v.ID] = true
			if v.Weight < 0 || v.Weight > 100 {
				return fmt.Errorf("%w: experiment %q variant %q weight out of range", ErrInvalidConfig, exp.Slug, v.ID)
			}
			total += v.Weight
		}
		if total > 100 {
			return fmt.Errorf("%w: experiment %q weights exceed 100", ErrInvalidConfig, exp.Slug)
		}
	}

	return nil
}
