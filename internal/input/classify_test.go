package input

import (
	"math/rand/v2"
	"testing"
	"time"
)

var testCfg = Config{Debounce: 50 * time.Millisecond, LongPress: 1000 * time.Millisecond}

// drive samples a level function every step from start to end and returns
// the emitted events with their offsets from start.
func drive(c *Classifier, start time.Time, end, step time.Duration, level func(time.Duration) bool) ([]Event, []time.Duration) {
	var events []Event
	var at []time.Duration
	for off := time.Duration(0); off <= end; off += step {
		if ev := c.Sample(level(off), start.Add(off)); ev != EventNone {
			events = append(events, ev)
			at = append(at, off)
		}
	}
	return events, at
}

func heldFor(d time.Duration) func(time.Duration) bool {
	return func(off time.Duration) bool { return off < d }
}

func TestClassifier_LongPress(t *testing.T) {
	c := NewClassifier(testCfg)
	events, at := drive(c, time.Unix(0, 0), 1500*time.Millisecond, 10*time.Millisecond, heldFor(1200*time.Millisecond))

	if len(events) != 1 || events[0] != EventLongPress {
		t.Fatalf("events = %v, want [long_press]", events)
	}
	// Debounce confirmation plus the threshold.
	if at[0] < 1000*time.Millisecond || at[0] > 1100*time.Millisecond {
		t.Errorf("LongPress at %v, want ≈1000ms", at[0])
	}
	if c.State() != StateReleased {
		t.Errorf("State() = %q after release, want %q", c.State(), StateReleased)
	}
}

func TestClassifier_ShortPress(t *testing.T) {
	c := NewClassifier(testCfg)
	events, at := drive(c, time.Unix(0, 0), 600*time.Millisecond, 10*time.Millisecond, heldFor(300*time.Millisecond))

	if len(events) != 1 || events[0] != EventShortPress {
		t.Fatalf("events = %v, want [short_press]", events)
	}
	if at[0] != 300*time.Millisecond {
		t.Errorf("ShortPress at %v, want on release (300ms)", at[0])
	}
}

func TestClassifier_RejectsBounce(t *testing.T) {
	c := NewClassifier(testCfg)
	// 20ms pulses with gaps: never stable for the debounce window.
	bounce := func(off time.Duration) bool {
		return off < 200*time.Millisecond && (off/(20*time.Millisecond))%2 == 0
	}
	events, _ := drive(c, time.Unix(0, 0), 400*time.Millisecond, 10*time.Millisecond, bounce)

	if len(events) != 0 {
		t.Errorf("events = %v, want none for contact bounce", events)
	}
}

func TestClassifier_LongPressNotRepeatedWhileHeld(t *testing.T) {
	c := NewClassifier(testCfg)
	events, _ := drive(c, time.Unix(0, 0), 6*time.Second, 10*time.Millisecond, heldFor(5*time.Second))

	if len(events) != 1 || events[0] != EventLongPress {
		t.Errorf("events = %v, want a single long_press", events)
	}
}

func TestClassify_Transitions(t *testing.T) {
	t0 := time.Unix(0, 0)
	tests := []struct {
		name      string
		snap      Snapshot
		pressed   bool
		at        time.Duration
		wantState State
		wantEvent Event
	}{
		{"zero value acts released", Snapshot{}, false, 0, StateReleased, EventNone},
		{"press starts debounce", Snapshot{State: StateReleased}, true, 0, StateDebouncingPress, EventNone},
		{"debounce pending", Snapshot{State: StateDebouncingPress, Since: t0}, true, 40 * time.Millisecond, StateDebouncingPress, EventNone},
		{"debounce confirmed", Snapshot{State: StateDebouncingPress, Since: t0}, true, 50 * time.Millisecond, StatePressed, EventNone},
		{"bounce released", Snapshot{State: StateDebouncingPress, Since: t0}, false, 30 * time.Millisecond, StateReleased, EventNone},
		{"short release", Snapshot{State: StatePressed, Since: t0}, false, 200 * time.Millisecond, StateReleased, EventShortPress},
		{"long threshold", Snapshot{State: StatePressed, Since: t0}, true, time.Second, StateLongPressed, EventLongPress},
		{"long release silent", Snapshot{State: StateLongPressed, Since: t0}, false, 2 * time.Second, StateReleased, EventNone},
		{"long held silent", Snapshot{State: StateLongPressed, Since: t0}, true, 3 * time.Second, StateLongPressed, EventNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ev := Classify(testCfg, tt.snap, tt.pressed, t0.Add(tt.at))
			if got.State != tt.wantState {
				t.Errorf("State = %q, want %q", got.State, tt.wantState)
			}
			if ev != tt.wantEvent {
				t.Errorf("Event = %v, want %v", ev, tt.wantEvent)
			}
		})
	}
}

// Randomised press/release cycles sampled at irregular intervals below the
// debounce window must yield exactly one event per cycle.
func TestClassifier_OneEventPerCycle(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 200; trial++ {
		c := NewClassifier(testCfg)
		now := time.Unix(0, 0)
		cycles := 1 + rng.IntN(5)
		events := 0

		sampleUntil := func(end time.Time, pressed bool) {
			for now.Before(end) {
				if ev := c.Sample(pressed, now); ev != EventNone {
					events++
				}
				now = now.Add(time.Duration(1+rng.IntN(49)) * time.Millisecond)
			}
		}

		for i := 0; i < cycles; i++ {
			hold := time.Duration(150+rng.IntN(2000)) * time.Millisecond
			gap := time.Duration(100+rng.IntN(500)) * time.Millisecond
			sampleUntil(now.Add(hold), true)
			sampleUntil(now.Add(gap), false)
		}

		if events != cycles {
			t.Fatalf("trial %d: events = %d, want %d", trial, events, cycles)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{}.WithDefaults()
	if got.Debounce != DefaultDebounce || got.LongPress != DefaultLongPress {
		t.Errorf("WithDefaults() = %+v, want %v/%v", got, DefaultDebounce, DefaultLongPress)
	}
}

func TestEvent_String(t *testing.T) {
	if EventShortPress.String() != "short_press" || EventLongPress.String() != "long_press" {
		t.Errorf("unexpected event names: %s, %s", EventShortPress, EventLongPress)
	}
}
