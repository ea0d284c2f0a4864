package backoff

import (
	"math/rand/v2"
	"time"
)

// Default retry parameters.
const (
	DefaultBase   = 1 * time.Second
	DefaultCap    = 30 * time.Second
	DefaultJitter = 0.2

	// maxShift keeps base<<attempt from overflowing int64 nanoseconds.
	maxShift = 32
)

// Config holds the retry parameters for a Budget.
type Config struct {
	// Base is the first delay handed out after a reset.
	Base time.Duration

	// Cap is the upper bound for any delay, jitter included.
	Cap time.Duration

	// Jitter is the fraction of the delay added at random, in [0, 1].
	// Zero disables jitter.
	Jitter float64
}

// Budget tracks consecutive failed attempts and the next retry delay.
type Budget struct {
	cfg      Config
	attempts int
	rand     func() float64
}

// New creates a Budget, applying defaults for zero values.
func New(cfg Config) *Budget {
	if cfg.Base <= 0 {
		cfg.Base = DefaultBase
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if cfg.Cap < cfg.Base {
		cfg.Cap = cfg.Base
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	if cfg.Jitter > 1 {
		cfg.Jitter = 1
	}
	return &Budget{cfg: cfg, rand: rand.Float64}
}

// SetRand replaces the jitter source. fn must return values in [0, 1).
func (b *Budget) SetRand(fn func() float64) {
	b.rand = fn
}

// Next records a failed attempt and returns the delay to wait before the
// next one.
func (b *Budget) Next() time.Duration {
	d := b.Peek()
	b.attempts++
	return d
}

// Peek returns the delay Next would return without consuming an attempt.
func (b *Budget) Peek() time.Duration {
	d := b.base(b.attempts)
	if b.cfg.Jitter > 0 && b.rand != nil {
		d += time.Duration(float64(d) * b.cfg.Jitter * b.rand())
	}
	if d > b.cfg.Cap {
		d = b.cfg.Cap
	}
	return d
}

// Attempts returns the number of failures recorded since the last reset.
func (b *Budget) Attempts() int {
	return b.attempts
}

// Reset returns the budget to its base delay.
func (b *Budget) Reset() {
	b.attempts = 0
}

// Cap returns the configured maximum delay.
func (b *Budget) Cap() time.Duration {
	return b.cfg.Cap
}

func (b *Budget) base(attempt int) time.Duration {
	if attempt > maxShift {
		return b.cfg.Cap
	}
	d := b.cfg.Base << uint(attempt) //nolint:gosec // attempt bounded above
	if d <= 0 || d > b.cfg.Cap {
		return b.cfg.Cap
	}
	return d
}
