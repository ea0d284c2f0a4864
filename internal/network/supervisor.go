package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/backoff"
)

// DefaultConnectTimeout bounds a single association attempt.
const DefaultConnectTimeout = 10 * time.Second

// Config holds supervisor settings.
type Config struct {
	// ConnectTimeout bounds each association attempt.
	ConnectTimeout time.Duration

	// Retry configures the reassociation backoff.
	Retry backoff.Config
}

// Supervisor owns association with the wireless network.
type Supervisor struct {
	cfg    Config
	radio  Radio
	budget *backoff.Budget
	logger Logger
	now    func() time.Time

	creds     Credentials
	haveCreds bool

	// In-flight attempt. abandoned is set once the attempt timed out; it is
	// still drained before a new attempt starts.
	pending      Token
	pendingSince time.Time
	abandoned    bool
	nextAttempt  time.Time

	mu     sync.RWMutex
	status Status
}

// NewSupervisor creates a supervisor for the given radio.
func NewSupervisor(radio Radio, cfg Config) *Supervisor {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	s := &Supervisor{
		cfg:    cfg,
		radio:  radio,
		budget: backoff.New(cfg.Retry),
		logger: noopLogger{},
		now:    time.Now,
	}
	s.status = Status{State: StateDisconnected, Since: s.now()}
	return s
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the clock used by Connect. Poll takes its time from
// the caller.
func (s *Supervisor) SetClock(now func() time.Time) {
	s.now = now
}

// Budget exposes the retry budget, mainly so tests can pin the jitter.
func (s *Supervisor) Budget() *backoff.Budget {
	return s.budget
}

// Connect performs the initial association and blocks until it completes,
// the connect timeout expires, or ctx is cancelled.
//
// On failure the supervisor is left in StateFailed with a reassociation
// scheduled, so the event loop keeps trying.
//
// Returns:
//   - error: nil when connected, otherwise ErrAssociation joined with the cause
func (s *Supervisor) Connect(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrAssociation, err)
	}
	s.creds = creds
	s.haveCreds = true

	if s.pending != nil {
		return fmt.Errorf("%w: %w: attempt already in flight", ErrAssociation, ErrRadioFault)
	}

	tok := s.begin(s.now())

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		s.pending = nil
		if err := tok.Error(); err != nil {
			cause := classify(err)
			s.fail(s.now(), cause)
			return fmt.Errorf("%w: %w", ErrAssociation, cause)
		}
		s.connected(s.now())
		return nil

	case <-timer.C:
		s.abandoned = true
		s.fail(s.now(), ErrAssociationTimeout)
		return fmt.Errorf("%w: %w after %v", ErrAssociation, ErrAssociationTimeout, s.cfg.ConnectTimeout)

	case <-ctx.Done():
		s.abandoned = true
		s.fail(s.now(), ctx.Err())
		return fmt.Errorf("%w: %w", ErrAssociation, ctx.Err())
	}
}

// Poll advances the supervisor. It never blocks.
func (s *Supervisor) Poll(now time.Time) {
	if s.pending != nil {
		s.pollPending(now)
		return
	}

	switch s.Status().State {
	case StateConnected:
		if !s.radio.LinkUp() {
			delay := s.budget.Next()
			s.nextAttempt = now.Add(delay)
			s.setStatus(StateDisconnected, ErrLinkLoss.Error(), now)
			s.logger.Warn("wireless link lost", "retry_in", delay)
		}

	case StateDisconnected, StateFailed:
		if s.haveCreds && !now.Before(s.nextAttempt) {
			s.logger.Info("reassociating", "attempt", s.budget.Attempts()+1)
			s.begin(now)
		}

	case StateAssociating:
		// Only reachable when pending was cleared externally; treat as idle.
		s.setStatus(StateDisconnected, "", now)
	}
}

// Status returns the current state. Safe for concurrent use.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// pollPending checks the in-flight attempt without blocking.
func (s *Supervisor) pollPending(now time.Time) {
	select {
	case <-s.pending.Done():
		err := s.pending.Error()
		abandoned := s.abandoned
		s.pending = nil
		s.abandoned = false

		if abandoned {
			// Outcome already recorded as a timeout; the next attempt is
			// scheduled and will start from a clean slate.
			s.logger.Debug("abandoned association attempt drained", "error", err)
			return
		}
		if err != nil {
			s.fail(now, classify(err))
			return
		}
		s.connected(now)

	default:
		if !s.abandoned && now.Sub(s.pendingSince) >= s.cfg.ConnectTimeout {
			s.abandoned = true
			s.fail(now, ErrAssociationTimeout)
		}
	}
}

// begin starts an association attempt.
func (s *Supervisor) begin(now time.Time) Token {
	tok := s.radio.Associate(s.creds)
	s.pending = tok
	s.pendingSince = now
	s.abandoned = false
	s.setStatus(StateAssociating, "", now)
	return tok
}

// fail records a failed attempt and schedules the next one.
func (s *Supervisor) fail(now time.Time, cause error) {
	delay := s.budget.Next()
	s.nextAttempt = now.Add(delay)
	s.setStatus(StateFailed, cause.Error(), now)
	s.logger.Warn("association failed",
		"error", cause,
		"attempts", s.budget.Attempts(),
		"retry_in", delay,
	)
}

func (s *Supervisor) connected(now time.Time) {
	s.budget.Reset()
	s.nextAttempt = time.Time{}
	s.setStatus(StateConnected, "", now)
	s.logger.Info("wireless network connected", "ssid", s.creds.SSID)
}

func (s *Supervisor) setStatus(state State, reason string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State != state || s.status.Reason != reason {
		s.status.Since = now
	}
	s.status.State = state
	s.status.Reason = reason
	s.status.Attempts = s.budget.Attempts()
	if state == StateDisconnected || state == StateFailed {
		s.status.NextAttempt = s.nextAttempt
	} else {
		s.status.NextAttempt = time.Time{}
	}
}
