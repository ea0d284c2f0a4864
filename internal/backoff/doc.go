// Package backoff provides the retry budget shared by the network and
// session supervisors.
//
// A Budget hands out capped exponential delays:
//
//	delay(n) = min(base * 2^n, cap) + jitter
//
// where jitter is drawn from [0, delay*Jitter) and the result is capped
// again, so the sequence is non-decreasing for any Jitter in [0, 1].
// Reset returns the budget to its base after a successful connection.
//
// A Budget is not safe for concurrent use; each supervisor owns one and
// drives it from its own tick.
package backoff
