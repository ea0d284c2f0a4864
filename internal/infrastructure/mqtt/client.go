package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// maxPayloadSize caps outbound payloads. Commands are far smaller; this
// only guards the transport against misuse.
const maxPayloadSize = 1 << 20 // 1MB

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Transport implements session.Transport over paho.
//
// paho's Connect, Publish and Subscribe can block for up to the write
// timeout when the socket stalls, so every call runs on a single dispatch
// goroutine in submission order. The returned tokens complete once paho's
// own token does.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Inbound is read by the event loop; paho goroutines only write to it.
type Transport struct {
	client      pahomqtt.Client
	cfg         config.MQTTConfig
	statusTopic string

	inbound        chan session.Message
	inboundDropped atomic.Uint64

	ops       chan op
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

var _ session.Transport = (*Transport)(nil)

// New creates a transport. It does not connect; the session manager calls
// Connect when the network is up.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - statusTopic: Topic for online/offline announcements and the Last Will
func New(cfg config.MQTTConfig, statusTopic string) *Transport {
	t := &Transport{
		cfg:         cfg,
		statusTopic: statusTopic,
		inbound:     make(chan session.Message, defaultInboundBuffer),
		ops:         make(chan op, defaultDispatchBuffer),
		quit:        make(chan struct{}),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, statusTopic, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.publishStatus("online", "")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if logger := t.getLogger(); logger != nil {
			logger.Warn("MQTT connection lost", "error", err)
		}
	})

	t.client = pahomqtt.NewClient(opts)

	t.wg.Add(1)
	go t.dispatch()
	return t
}

// Connect starts a CONNECT handshake. The returned token completes when the
// broker answers or the connect timeout expires.
func (t *Transport) Connect() session.Token {
	return t.submit("connect", func() pahomqtt.Token {
		return t.client.Connect()
	})
}

// IsConnected reports whether the connection is open right now. It does
// not block.
func (t *Transport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Publish sends one message without waiting for the acknowledgement.
func (t *Transport) Publish(topic string, qos byte, payload []byte) session.Token {
	if err := validatePublish(topic, qos, payload); err != nil {
		return completedToken(err)
	}
	if !t.IsConnected() {
		return completedToken(ErrNotConnected)
	}
	return t.submit("publish", func() pahomqtt.Token {
		return t.client.Publish(topic, qos, false, payload)
	})
}

// Subscribe registers topic. Matching messages arrive on Inbound.
func (t *Transport) Subscribe(topic string, qos byte) session.Token {
	if topic == "" {
		return completedToken(ErrInvalidTopic)
	}
	if qos > byte(session.AtLeastOnce) {
		return completedToken(ErrInvalidQoS)
	}
	if !t.IsConnected() {
		return completedToken(ErrNotConnected)
	}
	return t.submit("subscribe", func() pahomqtt.Token {
		return t.client.Subscribe(topic, qos, t.wrapHandler())
	})
}

// Heartbeat republishes the retained online status. It doubles as the
// application level liveness signal for dashboards.
func (t *Transport) Heartbeat() session.Token {
	if !t.IsConnected() {
		return completedToken(ErrNotConnected)
	}
	payload := statusPayload("online", t.cfg.Broker.ClientID, "")
	return t.submit("heartbeat", func() pahomqtt.Token {
		return t.client.Publish(t.statusTopic, statusQoS, true, payload)
	})
}

// Disconnect drops the connection. The broker publishes the Last Will since
// no graceful status precedes it. The token completes when paho has torn the
// connection down; a Connect submitted afterwards runs after it.
func (t *Transport) Disconnect() session.Token {
	return t.submit("disconnect", func() pahomqtt.Token {
		t.client.Disconnect(0)
		return nil
	})
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Disconnects with a short quiesce for pending operations
//
// Close blocks and is meant for shutdown, not for the event loop.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.quit) })
	t.wg.Wait()

	if t.IsConnected() {
		token := t.client.Publish(t.statusTopic, statusQoS, true,
			statusPayload("offline", t.cfg.Broker.ClientID, "graceful_shutdown"))
		if token.WaitTimeout(defaultCloseTimeout) && token.Error() != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Warn("failed to publish offline status", "error", token.Error())
			}
		}
	}
	t.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// Inbound returns messages received on subscribed topics.
func (t *Transport) Inbound() <-chan session.Message {
	return t.inbound
}

// InboundDropped is the number of inbound messages discarded because the
// event loop had not drained the channel.
func (t *Transport) InboundDropped() uint64 {
	return t.inboundDropped.Load()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (t *Transport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (t *Transport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

func (t *Transport) publishStatus(status, reason string) {
	t.client.Publish(t.statusTopic, statusQoS, true, statusPayload(status, t.cfg.Broker.ClientID, reason))
}

// deliver hands an inbound message to the event loop without blocking.
func (t *Transport) deliver(topic string, qos byte, payload []byte) {
	msg := session.NewMessage(topic, payload, session.QoS(qos))
	select {
	case t.inbound <- msg:
	default:
		n := t.inboundDropped.Add(1)
		if logger := t.getLogger(); logger != nil {
			logger.Warn("inbound channel full, message dropped",
				"topic", topic,
				"dropped_total", n,
			)
		}
	}
}

// wrapHandler adapts deliver to paho with panic recovery.
func (t *Transport) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := t.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()
		t.deliver(msg.Topic(), msg.Qos(), msg.Payload())
	}
}

// op is one paho call waiting for the dispatch goroutine.
type op struct {
	name string
	call func() pahomqtt.Token
	tok  *asyncToken
}

// submit queues call without blocking. A full queue fails the token with
// ErrDispatchFull; the session manager treats that like any failed publish.
func (t *Transport) submit(name string, call func() pahomqtt.Token) session.Token {
	select {
	case <-t.quit:
		return completedToken(ErrClosed)
	default:
	}

	tok := newAsyncToken()
	select {
	case t.ops <- op{name: name, call: call, tok: tok}:
		return tok
	default:
		return completedToken(ErrDispatchFull)
	}
}

// dispatch runs queued paho calls one at a time until Close.
func (t *Transport) dispatch() {
	defer t.wg.Done()
	for {
		select {
		case <-t.quit:
			t.drain()
			return
		default:
		}

		select {
		case <-t.quit:
			t.drain()
			return
		case o := <-t.ops:
			t.run(o)
		}
	}
}

func (t *Transport) run(o op) {
	defer func() {
		if r := recover(); r != nil {
			if logger := t.getLogger(); logger != nil {
				logger.Error("MQTT call panic recovered", "op", o.name, "panic", r)
			}
			o.tok.complete(fmt.Errorf("mqtt: %s panicked: %v", o.name, r))
		}
	}()

	pt := o.call()
	if pt == nil {
		o.tok.complete(nil)
		return
	}
	go func() {
		<-pt.Done()
		o.tok.complete(pt.Error())
	}()
}

func (t *Transport) drain() {
	for {
		select {
		case o := <-t.ops:
			o.tok.complete(ErrClosed)
		default:
			return
		}
	}
}

func validatePublish(topic string, qos byte, payload []byte) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if qos > byte(session.AtLeastOnce) {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	return nil
}

// doneToken is a token that has already completed.
type doneToken struct {
	err error
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func completedToken(err error) session.Token { return doneToken{err: err} }

func (doneToken) Done() <-chan struct{} { return closedChan }
func (t doneToken) Error() error        { return t.err }

// asyncToken completes once the dispatched paho call has finished.
type asyncToken struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newAsyncToken() *asyncToken {
	return &asyncToken{done: make(chan struct{})}
}

func (t *asyncToken) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *asyncToken) Done() <-chan struct{} { return t.done }

// Error returns the result, or nil while the call is still running.
func (t *asyncToken) Error() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
