package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrPassInFlight = errors.New("batch pass already in flight")
)
