package session

import (
	"fmt"
	"time"
)

// QoS is the delivery guarantee of a message or subscription.
type QoS byte

// Delivery levels. Only the first two are supported.
const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// String returns the conventional name of the level.
func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at_most_once"
	case AtLeastOnce:
		return "at_least_once"
	case ExactlyOnce:
		return "exactly_once"
	default:
		return fmt.Sprintf("qos(%d)", byte(q))
	}
}

// validate reports whether the level is one the session can honour.
func (q QoS) validate() error {
	if q == AtMostOnce || q == AtLeastOnce {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedQoS, q)
}

// Message is an outbound or inbound publish. Treat it as immutable; use
// NewMessage to build one from a buffer the caller may reuse.
type Message struct {
	Topic   string
	Payload []byte
	QoS     QoS
}

// NewMessage copies payload so the message cannot change after construction.
func NewMessage(topic string, payload []byte, qos QoS) Message {
	p := make([]byte, len(payload))
	copy(p, payload)
	return Message{Topic: topic, Payload: p, QoS: qos}
}

// State is the session lifecycle state.
type State string

// Session states.
const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateActive       State = "active"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Status is a snapshot of the session.
type Status struct {
	State State `json:"state"`

	// Reason is set in Reconnecting and Failed.
	Reason string `json:"reason,omitempty"`

	Since    time.Time `json:"since"`
	Attempts int       `json:"attempts"`
}

// QueueStats is a snapshot of the outbound queue.
type QueueStats struct {
	Len      int    `json:"len"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// Token reports completion of an asynchronous transport operation.
// paho.mqtt.golang tokens satisfy it.
type Token interface {
	Done() <-chan struct{}
	Error() error
}

// Transport is the broker connection the Manager drives. None of its methods
// may block; completion is reported through the returned token.
type Transport interface {
	// Connect starts a connection attempt.
	Connect() Token

	// IsConnected reports whether the broker connection is open.
	IsConnected() bool

	// Publish sends a message. qos is 0 or 1.
	Publish(topic string, qos byte, payload []byte) Token

	// Subscribe registers interest in a topic.
	Subscribe(topic string, qos byte) Token

	// Heartbeat publishes the liveness signal.
	Heartbeat() Token

	// Disconnect drops the connection. The token completes once the
	// transport is ready for another Connect.
	Disconnect() Token
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
