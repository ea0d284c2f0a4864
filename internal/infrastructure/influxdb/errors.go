package influxdb

import "errors"

// Sentinel errors for the node's telemetry client. Telemetry is optional,
// so callers log these and carry on; none of them stops the event loop.
var (
	// ErrNotConnected is returned by Write and HealthCheck
	// before Connect succeeded or after Close. The API health endpoint
	// reports it as "unreachable".
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed wraps the ping failure from Connect at boot.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed wraps errors from the non-blocking write API, which
	// arrive on the callback set with SetOnError.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry disabled")
)
