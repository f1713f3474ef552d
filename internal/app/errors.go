package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrUnknownExperiment = errors.New("unknown experiment")
	ErrUnknownEvent      = errors.New("unknown event name")
	ErrSessionNotFound   = errors.New("session not found")
)
