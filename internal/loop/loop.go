package loop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/input"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/session"
	"github.com/nerrad567/gray-logic-node/internal/watchdog"
)

// Loop defaults.
const (
	DefaultTick           = 10 * time.Millisecond
	DefaultWatchdogPeriod = 1000 * time.Millisecond
	DefaultFailedRetry    = 30 * time.Second

	// maxInboundPerTick bounds inbound notices handled per tick.
	maxInboundPerTick = 8

	// maxPayloadDetail bounds payload text copied into notices.
	maxPayloadDetail = 64
)

// Network is the part of network.Supervisor the loop drives.
type Network interface {
	Poll(now time.Time)
	Status() network.Status
}

// Session is the part of session.Manager the loop drives.
type Session interface {
	Open(now time.Time) session.Status
	Publish(msg session.Message) error
	Poll(now time.Time)
	Status() session.Status
	QueueStats() session.QueueStats
}

// Recorder receives notices. journal.Recorder satisfies it.
type Recorder interface {
	Record(n journal.Notice)
}

// Config holds loop settings.
type Config struct {
	// Tick is the interval between cooperative steps. Must be shorter than
	// the debounce window.
	Tick time.Duration

	// WatchdogPeriod is the longest the loop may go without yielding.
	WatchdogPeriod time.Duration

	// FailedRetry is how long a Failed session waits before the loop calls
	// Open again.
	FailedRetry time.Duration

	// EventTopic and EventQoS address button event messages.
	EventTopic string
	EventQoS   session.QoS

	// ShortPayload and LongPayload are published for each press kind.
	ShortPayload string
	LongPayload  string

	// MaxCommandsPerTick bounds how many commands are drained per tick.
	MaxCommandsPerTick int
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.WatchdogPeriod <= 0 {
		c.WatchdogPeriod = DefaultWatchdogPeriod
	}
	if c.FailedRetry <= 0 {
		c.FailedRetry = DefaultFailedRetry
	}
	if c.ShortPayload == "" {
		c.ShortPayload = input.EventShortPress.String()
	}
	if c.LongPayload == "" {
		c.LongPayload = input.EventLongPress.String()
	}
	if c.MaxCommandsPerTick <= 0 {
		c.MaxCommandsPerTick = session.DefaultQueueCapacity
	}
	return c
}

// Deps are the components the loop drives. Inbound, Recorder and Watchdog
// are optional.
type Deps struct {
	Network    Network
	Session    Session
	Button     input.Source
	Classifier *input.Classifier
	Commands   <-chan session.Message
	Inbound    <-chan session.Message
	Recorder   Recorder
	Watchdog   watchdog.Feeder
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopRecorder struct{}

func (noopRecorder) Record(journal.Notice) {}

// EventLoop is the single cooperative driver.
type EventLoop struct {
	cfg    Config
	deps   Deps
	logger Logger
	now    func() time.Time

	netState     network.State
	netReason    string
	sessState    session.State
	sessReason   string
	dropped      uint64
	buttonFaulty bool
	ticks        uint64
}

// New creates an event loop.
func New(deps Deps, cfg Config) *EventLoop {
	if deps.Button == nil {
		deps.Button = input.NoneSource{}
	}
	if deps.Classifier == nil {
		deps.Classifier = input.NewClassifier(input.Config{})
	}
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Watchdog == nil {
		deps.Watchdog = watchdog.Noop{}
	}
	return &EventLoop{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the loop.
func (l *EventLoop) SetLogger(logger Logger) {
	l.logger = logger
}

// SetClock replaces the clock used by Run.
func (l *EventLoop) SetClock(now func() time.Time) {
	l.now = now
}

// Ticks returns how many ticks have run.
func (l *EventLoop) Ticks() uint64 {
	return l.ticks
}

// Run ticks until ctx is cancelled.
//
// Returns:
//   - error: nil on cancellation, ErrWatchdogViolation if the loop stalled
func (l *EventLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	l.logger.Info("event loop started",
		"tick", l.cfg.Tick,
		"watchdog_period", l.cfg.WatchdogPeriod,
	)

	lastYield := l.now()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("event loop stopped", "ticks", l.ticks)
			return nil
		case <-ticker.C:
		}

		start := l.now()
		if gap := start.Sub(lastYield); gap > l.cfg.WatchdogPeriod {
			return fmt.Errorf("%w: %v between ticks", ErrWatchdogViolation, gap)
		}

		l.Tick(start)

		end := l.now()
		if took := end.Sub(start); took > l.cfg.WatchdogPeriod {
			return fmt.Errorf("%w: tick took %v", ErrWatchdogViolation, took)
		}
		if err := l.deps.Watchdog.Feed(); err != nil {
			l.logger.Warn("watchdog feed failed", "error", err)
		}
		lastYield = end
	}
}

// Tick runs one cooperative step. It never blocks.
func (l *EventLoop) Tick(now time.Time) {
	l.ticks++

	l.deps.Network.Poll(now)
	net := l.deps.Network.Status()
	l.observeNetwork(net, now)

	l.deps.Session.Poll(now)
	if net.Connected() {
		st := l.deps.Session.Status()
		switch {
		case st.State == session.StateIdle:
			l.deps.Session.Open(now)
		case st.State == session.StateFailed && now.Sub(st.Since) >= l.cfg.FailedRetry:
			l.logger.Info("reopening failed session", "failed_for", now.Sub(st.Since))
			l.deps.Session.Open(now)
		}
	}
	l.observeSession(now)

	l.sampleButton(now)
	l.drainCommands(now)
	l.drainInbound(now)
	l.observeDrops(now)
}

func (l *EventLoop) sampleButton(now time.Time) {
	pressed, err := l.deps.Button.Pressed()
	if err != nil {
		if !l.buttonFaulty {
			l.logger.Warn("button read failed", "error", err)
			l.buttonFaulty = true
		}
		pressed = false
	} else if l.buttonFaulty {
		l.logger.Info("button read recovered")
		l.buttonFaulty = false
	}

	ev := l.deps.Classifier.Sample(pressed, now)
	if ev == input.EventNone {
		return
	}

	payload := l.cfg.ShortPayload
	if ev == input.EventLongPress {
		payload = l.cfg.LongPayload
	}
	l.logger.Info("button event", "event", ev.String())
	l.deps.Recorder.Record(journal.Notice{
		At:        now,
		Kind:      journal.KindInput,
		Component: journal.ComponentInput,
		State:     ev.String(),
	})

	if l.cfg.EventTopic == "" {
		return
	}
	msg := session.NewMessage(l.cfg.EventTopic, []byte(payload), l.cfg.EventQoS)
	if err := l.deps.Session.Publish(msg); err != nil {
		l.logger.Error("publishing button event failed", "error", err)
	}
}

func (l *EventLoop) drainCommands(now time.Time) {
	if l.deps.Commands == nil {
		return
	}
	for i := 0; i < l.cfg.MaxCommandsPerTick; i++ {
		select {
		case msg := <-l.deps.Commands:
			if err := l.deps.Session.Publish(msg); err != nil {
				l.logger.Warn("dropping command", "topic", msg.Topic, "error", err)
				continue
			}
			l.deps.Recorder.Record(journal.Notice{
				At:        now,
				Kind:      journal.KindCommand,
				Component: journal.ComponentCommand,
				Detail:    excerpt(msg.Payload),
			})
		default:
			return
		}
	}
}

func (l *EventLoop) drainInbound(now time.Time) {
	if l.deps.Inbound == nil {
		return
	}
	for i := 0; i < maxInboundPerTick; i++ {
		select {
		case msg := <-l.deps.Inbound:
			l.logger.Info("message received", "topic", msg.Topic, "bytes", len(msg.Payload))
			l.deps.Recorder.Record(journal.Notice{
				At:        now,
				Kind:      journal.KindInbound,
				Component: journal.ComponentBroker,
				State:     msg.Topic,
				Detail:    excerpt(msg.Payload),
			})
		default:
			return
		}
	}
}

func (l *EventLoop) observeNetwork(st network.Status, now time.Time) {
	if st.State == l.netState && st.Reason == l.netReason {
		return
	}
	l.netState, l.netReason = st.State, st.Reason
	l.deps.Recorder.Record(journal.Notice{
		At:        now,
		Kind:      journal.KindTransition,
		Component: journal.ComponentNetwork,
		State:     string(st.State),
		Detail:    st.Reason,
	})
}

func (l *EventLoop) observeSession(now time.Time) {
	st := l.deps.Session.Status()
	if st.State == l.sessState && st.Reason == l.sessReason {
		return
	}
	l.sessState, l.sessReason = st.State, st.Reason
	l.deps.Recorder.Record(journal.Notice{
		At:        now,
		Kind:      journal.KindTransition,
		Component: journal.ComponentSession,
		State:     string(st.State),
		Detail:    st.Reason,
	})
}

func (l *EventLoop) observeDrops(now time.Time) {
	qs := l.deps.Session.QueueStats()
	if qs.Dropped == l.dropped {
		return
	}
	n := qs.Dropped - l.dropped
	l.dropped = qs.Dropped
	l.deps.Recorder.Record(journal.Notice{
		At:        now,
		Kind:      journal.KindDrop,
		Component: journal.ComponentQueue,
		Detail:    fmt.Sprintf("%d dropped, %d total", n, qs.Dropped),
	})
}

func excerpt(payload []byte) string {
	if len(payload) <= maxPayloadDetail {
		return string(payload)
	}
	return strings.ToValidUTF8(string(payload[:maxPayloadDetail]), "") + "…"
}
