package command

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// DefaultMaxLength bounds a command when Config.MaxLength is not positive.
const DefaultMaxLength = 128

// Config holds bridge settings.
type Config struct {
	// Topic is the fixed deployment topic every command is published to.
	Topic string

	// QoS is the delivery level of translated messages.
	QoS session.QoS

	// MaxLength is the maximum command length in bytes.
	MaxLength int

	// Buffer is the capacity of the hand-off to the event loop.
	Buffer int
}

// Bridge validates commands and hands them to the event loop.
//
// Thread Safety:
//   - Translate and Submit are safe for concurrent use.
//   - Pending is drained by the event loop only.
type Bridge struct {
	cfg     Config
	pending chan session.Message
}

// NewBridge creates a bridge. A zero Buffer defaults to the session queue
// capacity.
func NewBridge(cfg Config) *Bridge {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = session.DefaultQueueCapacity
	}
	return &Bridge{
		cfg:     cfg,
		pending: make(chan session.Message, cfg.Buffer),
	}
}

// Translate validates raw and builds the outbound message.
//
// Returns:
//   - session.Message: Message for the deployment topic
//   - error: ErrValidation describing the first problem found
func (b *Bridge) Translate(raw string) (session.Message, error) {
	if raw == "" {
		return session.Message{}, fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if len(raw) > b.cfg.MaxLength {
		return session.Message{}, fmt.Errorf("%w: message is %d bytes, maximum is %d", ErrValidation, len(raw), b.cfg.MaxLength)
	}
	if !utf8.ValidString(raw) {
		return session.Message{}, fmt.Errorf("%w: message is not valid UTF-8", ErrValidation)
	}
	for i, r := range raw {
		if unicode.IsControl(r) {
			return session.Message{}, fmt.Errorf("%w: control character at byte %d", ErrValidation, i)
		}
	}
	return session.NewMessage(b.cfg.Topic, []byte(raw), b.cfg.QoS), nil
}

// Submit translates raw and queues it for the event loop without blocking.
func (b *Bridge) Submit(raw string) (session.Message, error) {
	msg, err := b.Translate(raw)
	if err != nil {
		return session.Message{}, err
	}

	select {
	case b.pending <- msg:
		return msg, nil
	default:
		return session.Message{}, ErrBusy
	}
}

// Pending is the hand-off channel drained by the event loop.
func (b *Bridge) Pending() <-chan session.Message {
	return b.pending
}

// Topic returns the deployment topic.
func (b *Bridge) Topic() string {
	return b.cfg.Topic
}
