package service

import "errors"

// Sentinel errors for service wiring.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrMissingDirectory = errors.New("player directory and skill catalog are required")
)
