// Package journal records what happened on the node.
//
// The event loop emits Notices (state transitions, button events, queue
// drops, inbound messages) through a Recorder. Recording never blocks the
// loop: notices go into a bounded channel and are dropped when it is full.
// A separate goroutine fans each notice out to the configured sinks: the
// SQLite repository, InfluxDB telemetry and the live websocket stream.
package journal
