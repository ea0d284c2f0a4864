package journal

import (
	"context"
	"time"
)

// Kind classifies a notice.
type Kind string

// Notice kinds.
const (
	KindTransition Kind = "transition"
	KindInput      Kind = "input"
	KindDrop       Kind = "drop"
	KindInbound    Kind = "inbound"
	KindCommand    Kind = "command"
)

// Components that emit notices.
const (
	ComponentNetwork = "network"
	ComponentSession = "session"
	ComponentInput   = "input"
	ComponentQueue   = "queue"
	ComponentCommand = "command"
	ComponentBroker  = "broker"
)

// Notice is one journal entry.
type Notice struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	Component string    `json:"component"`

	// State is the new state for transitions or the event name for input.
	State string `json:"state,omitempty"`

	// Detail is free text: a failure reason, a topic, a payload excerpt.
	Detail string `json:"detail,omitempty"`
}

// Sink receives recorded notices.
type Sink interface {
	Write(ctx context.Context, n Notice) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notice) error

// Write calls f.
func (f SinkFunc) Write(ctx context.Context, n Notice) error {
	return f(ctx, n)
}
