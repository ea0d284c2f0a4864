// Package session keeps the publish/subscribe session with the remote broker.
//
// The Manager owns the session state machine and the bounded outbound queue.
// It never blocks: every transport operation returns a completion token that
// is polled on the next call to Poll.
//
// # States
//
//	Idle → Connecting → Active
//	Active → Reconnecting → Active
//	Reconnecting → Failed (after the attempt budget is spent)
//	any → Idle (network lost)
//
// A Failed session stays Failed until the next Open. The outbound queue
// survives every transition; only overflow drops messages, oldest first.
//
// # Usage
//
//	mgr := session.NewManager(transport, sup.Status().Connected, session.Config{})
//	mgr.Subscribe("glnode/node-01/message", session.AtLeastOnce)
//	mgr.Open(time.Now())
//	for now := range ticker.C {
//	    mgr.Poll(now)
//	}
package session
