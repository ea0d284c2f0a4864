package network

import (
	"time"
	"unicode/utf8"
)

// State is the association state of the device.
type State string

const (
	StateDisconnected State = "disconnected"
	StateAssociating  State = "associating"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// Maximum lengths accepted by 802.11 for the network name and WPA passphrase.
const (
	maxSSIDLength       = 32
	maxPassphraseLength = 64
)

// Status is a snapshot of the supervisor state.
// Reason is set for StateFailed and StateDisconnected after a link loss.
type Status struct {
	State  State     `json:"state"`
	Reason string    `json:"reason,omitempty"`
	Since  time.Time `json:"since"`

	// Attempts is the number of failed association attempts since the last
	// successful one.
	Attempts int `json:"attempts"`

	// NextAttempt is when the next reassociation is scheduled (zero when
	// connected or associating).
	NextAttempt time.Time `json:"next_attempt,omitzero"`
}

// Connected reports whether the link is usable.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// Credentials identify the wireless network.
// They are immutable for the process lifetime.
type Credentials struct {
	SSID       string
	Passphrase string
}

// Validate checks the credentials are usable by a radio driver.
// An empty passphrase selects an open network.
func (c Credentials) Validate() error {
	if c.SSID == "" || len(c.SSID) > maxSSIDLength {
		return ErrInvalidCredentials
	}
	if len(c.Passphrase) > maxPassphraseLength || !utf8.ValidString(c.Passphrase) {
		return ErrInvalidCredentials
	}
	return nil
}

// Token reports completion of an asynchronous radio operation.
type Token interface {
	// Done is closed when the operation completes.
	Done() <-chan struct{}

	// Error returns the outcome once Done is closed.
	Error() error
}

// Radio is the wireless driver used by the Supervisor.
type Radio interface {
	// Associate starts associating with the network and returns immediately.
	Associate(creds Credentials) Token

	// LinkUp reports whether the link is currently up. It must not block.
	LinkUp() bool
}

// Logger defines the logging interface for the supervisor.
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
