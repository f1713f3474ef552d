// Package bucket assigns visitors to experiment variants.
package bucket

import "time"

// Option applies a configuration option to the Bucketer.
type Option func(*Bucketer)

// WithAssignmentTTL sets how long a weighted assignment persists.
func WithAssignmentTTL(ttl time.Duration) Option {
	return func(b *Bucketer) {
		if ttl > 0 {
			b.assignmentTTL = ttl
		}
	}
}

// WithForcedTTL sets how long a forced assignment persists.
func WithForcedTTL(ttl time.Duration) Option {
	return func(b *Bucketer) {
		if ttl > 0 {
			b.forcedTTL = ttl
		}
	}
}

// WithRandFunc overrides the uniform [0,1) source used for the first
// draw. Tests inject a deterministic sequence here.
func WithRandFunc(rng func() float64) Option {
	return func(b *Bucketer) {
		if rng != nil {
			b.rng = rng
		}
	}
}
