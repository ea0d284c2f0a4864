package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing or subscribing without an
	// open connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrInvalidQoS is returned for QoS levels the transport does not
	// offer. Exactly-once is not supported.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0 or 1)")

	// ErrInvalidTopic is returned when a topic is empty or a publish topic
	// contains wildcards.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")

	// ErrPayloadTooLarge is returned when a payload exceeds maxPayloadSize.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrDispatchFull is returned when too many calls are waiting on a
	// stalled connection.
	ErrDispatchFull = errors.New("mqtt: dispatch queue full")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mqtt: transport closed")
)
