package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/backoff"
)

// Session defaults.
const (
	DefaultMaxAttempts    = 5
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishTimeout = 500 * time.Millisecond
)

// Config holds session manager settings.
type Config struct {
	// QueueCapacity bounds the outbound queue.
	QueueCapacity int

	// MaxAttempts is the number of failed connect attempts after which the
	// session gives up and enters Failed.
	MaxAttempts int

	// Retry shapes the delay between connect attempts.
	Retry backoff.Config

	// KeepAlive is the negotiated broker keep-alive. A heartbeat is sent
	// after half of it passes without outbound traffic.
	KeepAlive time.Duration

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration

	// PublishTimeout bounds each in-flight publish.
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	return c
}

type subscription struct {
	topic string
	qos   QoS
}

type pendingSub struct {
	topic string
	tok   Token
}

// Manager owns the broker session and the outbound queue.
//
// Open, Publish, Subscribe and Poll must be called from a single goroutine
// (the event loop). Status and QueueStats are safe from any goroutine.
type Manager struct {
	cfg       Config
	transport Transport
	networkUp func() bool
	queue     *Queue
	budget    *backoff.Budget
	logger    Logger

	subs []subscription

	connectTok    Token
	connectSince  time.Time
	nextAttempt   time.Time
	disconnectTok Token

	// failures counts failed connect attempts toward MaxAttempts. The
	// budget's own counter indexes the delay and also advances on loss.
	failures int

	inflight      *Message
	inflightTok   Token
	inflightSince time.Time

	heartbeatTok Token
	lastSent     time.Time

	pendingSubs []pendingSub

	mu     sync.RWMutex
	status Status
}

// NewManager creates a session manager.
//
// Parameters:
//   - transport: Broker connection
//   - networkUp: Reports whether the network is Connected
//   - cfg: Session settings (zero values take defaults)
func NewManager(transport Transport, networkUp func() bool, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:       cfg,
		transport: transport,
		networkUp: networkUp,
		queue:     NewQueue(cfg.QueueCapacity),
		budget:    backoff.New(cfg.Retry),
		logger:    noopLogger{},
		status:    Status{State: StateIdle, Since: time.Now()},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Budget exposes the retry budget, mainly so tests can pin the jitter.
func (m *Manager) Budget() *backoff.Budget {
	return m.budget
}

// Open starts connecting when the session is Idle or Failed and the network
// is Connected. Otherwise it does nothing.
func (m *Manager) Open(now time.Time) Status {
	if !m.networkUp() {
		return m.Status()
	}

	switch m.Status().State {
	case StateIdle, StateFailed:
		m.budget.Reset()
		m.failures = 0
		m.begin(now, StateConnecting)
	}
	return m.Status()
}

// Publish enqueues msg for delivery. It is accepted in every state; only
// queue overflow drops messages (oldest first).
func (m *Manager) Publish(msg Message) error {
	if msg.Topic == "" {
		return ErrInvalidTopic
	}
	if err := msg.QoS.validate(); err != nil {
		return err
	}
	if m.queue.Push(msg) {
		m.logger.Warn("outbound queue full, dropped oldest message",
			"capacity", m.queue.Cap(),
			"dropped_total", m.queue.Dropped(),
		)
	}
	return nil
}

// Subscribe registers a subscription. It is sent immediately when the
// session is Active and restored on every later activation.
func (m *Manager) Subscribe(topic string, qos QoS) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if err := qos.validate(); err != nil {
		return err
	}

	found := false
	for i := range m.subs {
		if m.subs[i].topic == topic {
			m.subs[i].qos = qos
			found = true
		}
	}
	if !found {
		m.subs = append(m.subs, subscription{topic: topic, qos: qos})
	}

	if m.Status().State == StateActive {
		m.sendSubscribe(subscription{topic: topic, qos: qos})
	}
	return nil
}

// Poll advances the session by one step. It never blocks.
func (m *Manager) Poll(now time.Time) {
	state := m.Status().State

	if !m.networkUp() {
		if state != StateIdle {
			m.reset(now)
		}
		return
	}

	switch state {
	case StateConnecting, StateReconnecting:
		m.pollConnect(now)
	case StateActive:
		m.pollActive(now)
	}
}

// Status returns the current state. Safe for concurrent use.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// QueueStats returns the outbound queue snapshot. Safe for concurrent use.
func (m *Manager) QueueStats() QueueStats {
	return m.queue.Stats()
}

// begin starts a connect attempt. While an earlier disconnect is still
// running the attempt is deferred to pollConnect.
func (m *Manager) begin(now time.Time, state State) {
	m.connectSince = now
	if m.disconnecting() {
		m.connectTok = nil
		m.nextAttempt = now
	} else {
		m.connectTok = m.transport.Connect()
	}
	reason := ""
	if state == StateReconnecting {
		reason = m.Status().Reason
	}
	m.setStatus(state, reason, now)
}

// disconnecting reports whether the last Disconnect has yet to finish.
func (m *Manager) disconnecting() bool {
	if m.disconnectTok == nil {
		return false
	}
	select {
	case <-m.disconnectTok.Done():
		m.disconnectTok = nil
		return false
	default:
		return true
	}
}

func (m *Manager) disconnect() {
	m.disconnectTok = m.transport.Disconnect()
}

func (m *Manager) pollConnect(now time.Time) {
	if m.connectTok == nil {
		if now.Before(m.nextAttempt) || m.disconnecting() {
			return
		}
		state := m.Status().State
		if state == StateReconnecting {
			m.logger.Info("reconnecting to broker", "attempt", m.failures+1)
		}
		m.begin(now, state)
		return
	}

	select {
	case <-m.connectTok.Done():
		err := m.connectTok.Error()
		m.connectTok = nil
		if err != nil {
			m.attemptFailed(now, err)
			return
		}
		m.activate(now)

	default:
		if now.Sub(m.connectSince) >= m.cfg.ConnectTimeout {
			m.connectTok = nil
			m.disconnect()
			m.attemptFailed(now, ErrConnectTimeout)
		}
	}
}

// attemptFailed counts a failed connect attempt and either schedules the
// next one or gives up.
func (m *Manager) attemptFailed(now time.Time, cause error) {
	m.failures++
	delay := m.budget.Next()
	reason := fmt.Errorf("%w: %w", ErrSession, cause).Error()

	if m.failures >= m.cfg.MaxAttempts {
		m.setStatus(StateFailed, reason, now)
		m.logger.Error("broker session failed",
			"error", cause,
			"attempts", m.failures,
		)
		return
	}

	m.nextAttempt = now.Add(delay)
	m.setStatus(StateReconnecting, reason, now)
	m.logger.Warn("broker connect failed",
		"error", cause,
		"attempts", m.failures,
		"retry_in", delay,
	)
}

func (m *Manager) activate(now time.Time) {
	m.budget.Reset()
	m.failures = 0
	m.lastSent = now
	m.setStatus(StateActive, "", now)
	m.logger.Info("broker session active", "subscriptions", len(m.subs))

	for _, sub := range m.subs {
		m.sendSubscribe(sub)
	}
	m.flush(now)
}

func (m *Manager) pollActive(now time.Time) {
	if !m.transport.IsConnected() {
		m.lost(now)
		return
	}

	m.pollSubscriptions()
	m.pollInflight(now)
	m.flush(now)
	m.keepAlive(now)
}

// lost moves an Active session to Reconnecting. The loss takes the first
// backoff step so each later failure doubles the delay.
func (m *Manager) lost(now time.Time) {
	m.abandonInflight()
	m.heartbeatTok = nil
	m.pendingSubs = nil
	m.budget.Reset()
	m.failures = 0
	delay := m.budget.Next()
	m.nextAttempt = now.Add(delay)
	m.setStatus(StateReconnecting, fmt.Errorf("%w: %w", ErrSession, ErrBrokerLost).Error(), now)
	m.logger.Warn("broker connection lost", "retry_in", delay)
}

// reset returns to Idle after the network went away. The queue is kept.
func (m *Manager) reset(now time.Time) {
	m.disconnect()
	m.connectTok = nil
	m.abandonInflight()
	m.heartbeatTok = nil
	m.pendingSubs = nil
	m.budget.Reset()
	m.failures = 0
	m.nextAttempt = time.Time{}
	m.setStatus(StateIdle, "", now)
	m.logger.Info("network down, session idle", "queued", m.queue.Len())
}

// pollInflight checks the message handed to the transport and reports
// whether it has been delivered.
func (m *Manager) pollInflight(now time.Time) bool {
	if m.inflight == nil {
		return false
	}

	select {
	case <-m.inflightTok.Done():
		if err := m.inflightTok.Error(); err != nil {
			m.logger.Warn("publish failed", "topic", m.inflight.Topic, "error", err)
			m.abandonInflight()
			return false
		}
		m.inflight = nil
		m.inflightTok = nil
		return true

	default:
		if now.Sub(m.inflightSince) >= m.cfg.PublishTimeout {
			m.logger.Warn("publish timed out", "topic", m.inflight.Topic)
			m.abandonInflight()
		}
		return false
	}
}

// abandonInflight gives up on the in-flight message. At-least-once messages
// go back to the front of the queue.
func (m *Manager) abandonInflight() {
	if m.inflight == nil {
		return
	}
	msg := *m.inflight
	m.inflight = nil
	m.inflightTok = nil

	if msg.QoS == AtLeastOnce && !m.queue.Requeue(msg) {
		m.logger.Warn("outbound queue full, dropped redelivery", "topic", msg.Topic)
	}
}

// flush hands queued messages to the transport one at a time, continuing
// only while publishes complete successfully on the spot.
func (m *Manager) flush(now time.Time) {
	for m.inflight == nil {
		msg, ok := m.queue.Pop()
		if !ok {
			return
		}
		m.inflight = &msg
		m.inflightTok = m.transport.Publish(msg.Topic, byte(msg.QoS), msg.Payload)
		m.inflightSince = now
		m.lastSent = now

		if !m.pollInflight(now) {
			return
		}
	}
}

func (m *Manager) keepAlive(now time.Time) {
	if m.heartbeatTok != nil {
		select {
		case <-m.heartbeatTok.Done():
			if err := m.heartbeatTok.Error(); err != nil {
				m.logger.Warn("heartbeat failed", "error", err)
			}
			m.heartbeatTok = nil
		default:
			return
		}
	}

	if m.inflight == nil && now.Sub(m.lastSent) >= m.cfg.KeepAlive/2 {
		m.heartbeatTok = m.transport.Heartbeat()
		m.lastSent = now
	}
}

func (m *Manager) sendSubscribe(sub subscription) {
	m.pendingSubs = append(m.pendingSubs, pendingSub{
		topic: sub.topic,
		tok:   m.transport.Subscribe(sub.topic, byte(sub.qos)),
	})
}

func (m *Manager) pollSubscriptions() {
	kept := m.pendingSubs[:0]
	for _, p := range m.pendingSubs {
		select {
		case <-p.tok.Done():
			if err := p.tok.Error(); err != nil {
				m.logger.Warn("subscribe failed", "topic", p.topic, "error", err)
			} else {
				m.logger.Debug("subscribed", "topic", p.topic)
			}
		default:
			kept = append(kept, p)
		}
	}
	m.pendingSubs = kept
}

func (m *Manager) setStatus(state State, reason string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State != state || m.status.Reason != reason {
		m.status.Since = now
	}
	m.status.State = state
	m.status.Reason = reason
	m.status.Attempts = m.failures
}
