package session

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSession is the class of broker session failures. The Reason of a
	// Failed status is always derived from an error wrapping it.
	ErrSession = errors.New("session: broker session error")

	// ErrConnectTimeout is recorded when a connect attempt does not complete
	// within the configured timeout.
	ErrConnectTimeout = errors.New("session: connect timed out")

	// ErrBrokerLost is recorded when an active session drops.
	ErrBrokerLost = errors.New("session: broker connection lost")

	// ErrUnsupportedQoS is returned for ExactlyOnce delivery requests.
	ErrUnsupportedQoS = errors.New("session: unsupported QoS (only 0 and 1)")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("session: topic cannot be empty")
)
