package command

import "errors"

// Domain-specific errors for command handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation is returned for malformed or oversized commands.
	ErrValidation = errors.New("command: validation failed")

	// ErrBusy is returned when the hand-off to the event loop is full.
	ErrBusy = errors.New("command: hand-off full")
)
