package loop

import "errors"

// ErrWatchdogViolation is returned by Run when the loop failed to yield
// within the watchdog period. It is fatal.
var ErrWatchdogViolation = errors.New("loop: watchdog period exceeded")
