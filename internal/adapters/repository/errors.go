package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidTTL = errors.New("invalid ttl")
	ErrClosed     = errors.New("store closed")
)
