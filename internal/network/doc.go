// Package network supervises association with the wireless network.
//
// The Supervisor owns the NetworkState. It is driven in two phases:
//
//   - Connect performs the initial association during bring-up and blocks
//     for at most the connect timeout.
//   - Poll is called on every event-loop tick. It never blocks: it checks
//     the in-flight association token, detects link loss, and schedules
//     reassociation through a backoff.Budget.
//
// Association loss is never terminal. Attempts are unbounded in count but
// always rate-limited by the retry delay, and at most one association
// attempt is in flight at any time (a timed-out attempt is drained before
// the next one starts).
//
// The radio itself is injected as a Radio. Drivers live in internal/radio.
//
// Status may be read from any goroutine; every other method must be called
// from the event-loop goroutine.
package network
