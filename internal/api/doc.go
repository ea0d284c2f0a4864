// Package api implements the node's HTTP surface: command ingress, status,
// the diagnostic journal and a live notice stream.
//
// Endpoints:
//   - GET  /                  control panel (see package panel)
//   - GET  /api/v1/health     network, session and queue snapshot; always 200
//   - POST /api/v1/message    submit a command for publishing
//   - GET  /api/v1/history    recent journal notices
//   - GET  /api/v1/ws         WebSocket stream of journal notices
//
// # Threading
//
// Handlers run on net/http goroutines and never touch the event loop's
// state. Commands cross into the loop through command.Bridge, a bounded
// non-blocking hand-off; status reads are snapshots guarded inside the
// network and session packages.
//
// # Security
//
// When security.jwt.secret is set, POST /message requires a bearer token
// with the "command" scope, and history plus the WebSocket stream require
// the "read" scope. Health and the panel are always open so a technician can
// diagnose a node without credentials.
package api
