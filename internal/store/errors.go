package store

import "errors"

var (
	// ErrNotFound is returned by write paths when the target row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a completion is not in the
	// status a transition requires.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNegativeAmount    = errors.New("amount must be >= 0")
	ErrAmountTooLarge    = errors.New("amount too large")
)
