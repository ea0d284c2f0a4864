// Package command bridges inbound text commands into outbound messages.
//
// Translate is pure validation. Submit validates and hands the message to
// the event loop through a bounded channel; it never touches session state
// from the caller's goroutine.
package command
