// Package input turns raw button level samples into press events.
//
// Classify is a pure function of (snapshot, level, time) so it can be driven
// by any clock. Classifier wraps it for the event loop.
//
//	released ──level──▶ debouncing_press ──held ≥ debounce──▶ pressed
//	    ▲                      │ bounce                          │
//	    └──────────────────────┘                                 │ held ≥ long press
//	    ◀──release (ShortPress)── pressed        long_pressed ◀──┘ (LongPress)
//	    ◀──release (no event)──────────────────── long_pressed
//
// Exactly one ShortPress or LongPress is emitted per press and release, as
// long as samples are taken more often than the debounce window.
package input
