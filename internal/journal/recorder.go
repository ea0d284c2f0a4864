package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultBuffer is the recorder channel capacity when none is given.
const DefaultBuffer = 256

// sinkTimeout bounds a single sink write.
const sinkTimeout = 2 * time.Second

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder buffers notices and delivers them to sinks from its own
// goroutine.
//
// Thread Safety:
//   - Record is safe for concurrent use and never blocks.
//   - AddSink must be called before Start.
type Recorder struct {
	ch      chan Notice
	sinks   []Sink
	dropped atomic.Uint64
	logger  Logger

	wg sync.WaitGroup
}

// NewRecorder creates a recorder with the given channel capacity.
func NewRecorder(buffer int) *Recorder {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Recorder{ch: make(chan Notice, buffer), logger: noopLogger{}}
}

// SetLogger sets the logger for sink failures.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// AddSink registers a sink.
func (r *Recorder) AddSink(s Sink) {
	r.sinks = append(r.sinks, s)
}

// Record queues n, filling in ID and At when empty. When the buffer is
// full the notice is dropped and counted.
func (r *Recorder) Record(n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}
	n.At = n.At.UTC()

	select {
	case r.ch <- n:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many notices were lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Start runs the delivery goroutine until ctx is cancelled. Notices still
// buffered at that point are delivered before it exits.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
}

// Wait blocks until the delivery goroutine has exited.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) run(ctx context.Context) {
	for {
		select {
		case n := <-r.ch:
			r.deliver(context.WithoutCancel(ctx), n)
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return
		}
	}
}

func (r *Recorder) drain(ctx context.Context) {
	for {
		select {
		case n := <-r.ch:
			r.deliver(ctx, n)
		default:
			return
		}
	}
}

func (r *Recorder) deliver(ctx context.Context, n Notice) {
	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Write(sctx, n); err != nil {
			r.logger.Warn("journal sink write failed", "kind", n.Kind, "error", err)
		}
		cancel()
	}
}
