package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

func newTestBridge(buffer int) *Bridge {
	return NewBridge(Config{
		Topic:     "glnode/node-01/message",
		QoS:       session.AtLeastOnce,
		MaxLength: 128,
		Buffer:    buffer,
	})
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"hello", "Hello", false},
		{"unicode", "Grüße 👋", false},
		{"max length", strings.Repeat("a", 128), false},
		{"empty", "", true},
		{"oversized", strings.Repeat("a", 129), true},
		{"invalid utf8", "\xff\xfe", true},
		{"newline", "Hello\nWorld", true},
		{"nul", "Hello\x00", true},
	}

	b := newTestBridge(4)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := b.Translate(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Translate(%q) error = %v, want ErrValidation", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Translate(%q) error = %v", tt.raw, err)
			}
			if string(msg.Payload) != tt.raw {
				t.Errorf("Payload = %q, want %q", msg.Payload, tt.raw)
			}
			if msg.Topic != "glnode/node-01/message" || msg.QoS != session.AtLeastOnce {
				t.Errorf("msg = %+v, want deployment topic at AtLeastOnce", msg)
			}
		})
	}
}

func TestSubmit_InvalidLeavesHandOffUntouched(t *testing.T) {
	b := newTestBridge(4)

	if _, err := b.Submit(strings.Repeat("x", 500)); !errors.Is(err, ErrValidation) {
		t.Fatalf("Submit() error = %v, want ErrValidation", err)
	}
	if got := len(b.Pending()); got != 0 {
		t.Errorf("pending = %d after rejected command, want 0", got)
	}
}

func TestSubmit_BusyWhenFull(t *testing.T) {
	b := newTestBridge(2)

	for _, raw := range []string{"Hello", "World"} {
		if _, err := b.Submit(raw); err != nil {
			t.Fatalf("Submit(%q) error = %v", raw, err)
		}
	}
	if _, err := b.Submit("again"); !errors.Is(err, ErrBusy) {
		t.Errorf("Submit() on full hand-off error = %v, want ErrBusy", err)
	}

	got := <-b.Pending()
	if string(got.Payload) != "Hello" {
		t.Errorf("first pending = %q, want Hello", got.Payload)
	}
}

func TestNewBridge_Defaults(t *testing.T) {
	b := NewBridge(Config{Topic: "t"})

	if _, err := b.Translate(strings.Repeat("a", DefaultMaxLength+1)); !errors.Is(err, ErrValidation) {
		t.Errorf("default max length not applied: %v", err)
	}
	if got := cap(b.pending); got != session.DefaultQueueCapacity {
		t.Errorf("buffer = %d, want %d", got, session.DefaultQueueCapacity)
	}
}
