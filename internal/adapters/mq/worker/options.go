// Package worker drains the analytics queue into the configured sink.
package worker

import (
	"github.com/okian/cohort/pkg/logger"
)

// Option applies a configuration option to the DeliveryWorker.
type Option func(*DeliveryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *DeliveryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *DeliveryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
