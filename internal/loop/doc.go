// Package loop drives the node from a single goroutine.
//
// Each tick polls the network supervisor, then the session manager, then
// samples the button, forwards any press event and drains pending commands
// into the session. Between ticks the loop yields and feeds the watchdog.
// If a tick or the wait between ticks exceeds the watchdog period, Run
// returns ErrWatchdogViolation and the process is expected to exit.
package loop
