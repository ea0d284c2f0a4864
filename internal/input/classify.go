package input

import (
	"fmt"
	"time"
)

// Classifier defaults.
const (
	DefaultDebounce  = 50 * time.Millisecond
	DefaultLongPress = 1000 * time.Millisecond
)

// State is the button state.
type State string

// Button states.
const (
	StateReleased        State = "released"
	StateDebouncingPress State = "debouncing_press"
	StatePressed         State = "pressed"
	StateLongPressed     State = "long_pressed"
)

// Event is an emitted press event.
type Event int

// Press events. EventNone means nothing was emitted.
const (
	EventNone Event = iota
	EventShortPress
	EventLongPress
)

// String returns the event name used in notices and payloads.
func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventShortPress:
		return "short_press"
	case EventLongPress:
		return "long_press"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Config holds the classifier timings.
type Config struct {
	// Debounce is how long the level must stay asserted before a press is
	// confirmed.
	Debounce time.Duration

	// LongPress is how long a confirmed press must be held to count as long.
	LongPress time.Duration
}

// WithDefaults fills zero fields with the package defaults.
func (c Config) WithDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.LongPress <= 0 {
		c.LongPress = DefaultLongPress
	}
	return c
}

// Snapshot is the classifier state between samples. The zero value is
// Released.
type Snapshot struct {
	State State

	// Since is when State was entered: the first asserted sample while
	// debouncing, the confirmation time while pressed.
	Since time.Time
}

// Classify computes the next snapshot from a level sample.
//
// Parameters:
//   - cfg: Timings (use Config.WithDefaults)
//   - s: Current snapshot
//   - pressed: Raw level, true while the button is held
//   - now: Monotonic sample time
//
// Returns:
//   - Snapshot: Next snapshot
//   - Event: EventShortPress or EventLongPress when one fires, EventNone otherwise
func Classify(cfg Config, s Snapshot, pressed bool, now time.Time) (Snapshot, Event) {
	switch s.State {
	case StateDebouncingPress:
		if !pressed {
			// Bounce.
			return Snapshot{State: StateReleased, Since: now}, EventNone
		}
		if now.Sub(s.Since) >= cfg.Debounce {
			return Snapshot{State: StatePressed, Since: now}, EventNone
		}
		return s, EventNone

	case StatePressed:
		if !pressed {
			return Snapshot{State: StateReleased, Since: now}, EventShortPress
		}
		if now.Sub(s.Since) >= cfg.LongPress {
			return Snapshot{State: StateLongPressed, Since: now}, EventLongPress
		}
		return s, EventNone

	case StateLongPressed:
		if !pressed {
			return Snapshot{State: StateReleased, Since: now}, EventNone
		}
		return s, EventNone

	default:
		if pressed {
			return Snapshot{State: StateDebouncingPress, Since: now}, EventNone
		}
		if s.State != StateReleased {
			return Snapshot{State: StateReleased, Since: now}, EventNone
		}
		return s, EventNone
	}
}

// Classifier holds a snapshot between samples. It is not safe for
// concurrent use; the event loop owns it.
type Classifier struct {
	cfg  Config
	snap Snapshot
}

// NewClassifier creates a classifier in the Released state.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg:  cfg.WithDefaults(),
		snap: Snapshot{State: StateReleased},
	}
}

// Sample feeds one level sample and returns the emitted event, if any.
func (c *Classifier) Sample(pressed bool, now time.Time) Event {
	var ev Event
	c.snap, ev = Classify(c.cfg, c.snap, pressed, now)
	return ev
}

// State returns the current button state.
func (c *Classifier) State() State {
	return c.snap.State
}

// Config returns the effective timings.
func (c *Classifier) Config() Config {
	return c.cfg
}
