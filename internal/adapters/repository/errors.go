package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEvent = errors.New("duplicate event id")
	ErrConflict       = errors.New("transaction conflict: retries exhausted")
	ErrInvalidLimit   = errors.New("invalid limit")
)
