package domain

import "errors"

// Error kinds shared by the pipeline. Adapters wrap them with %w so callers
// can classify with errors.Is. Probe failures are never errors: they are
// recorded as StatusDown.
var (
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrPersistence         = errors.New("persistence error")
	ErrQueueUnavailable    = errors.New("queue unavailable")
	ErrNotify              = errors.New("notify failure")
)
