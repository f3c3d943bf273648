package dupcheck

import "errors"

var (
	// ErrInvalidConfig indicates missing or out-of-range run settings.
	ErrInvalidConfig = errors.New("dupcheck: invalid config")

	// ErrUnhealthy indicates the service did not answer its health check.
	ErrUnhealthy = errors.New("dupcheck: service unhealthy")

	// ErrViolation indicates more than one assessment exists for the month,
	// or more than one create was accepted.
	ErrViolation = errors.New("dupcheck: one-per-month violated")

	// ErrRequestFailed indicates attempts that neither created nor conflicted.
	ErrRequestFailed = errors.New("dupcheck: requests failed")
)
