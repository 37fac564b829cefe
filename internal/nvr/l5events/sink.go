package l5events

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/watch.report/internal/monitoring"
)

// Sink receives recorded events for delivery outside the process: the
// SQLite archive, the Kafka events topic, the S3 archive.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, ev Event) error
}

func (s SinkFunc) Name() string                                { return s.Label }
func (s SinkFunc) Publish(ctx context.Context, ev Event) error { return s.Fn(ctx, ev) }

// FanoutConfig configures a Fanout.
type FanoutConfig struct {
	// Buffer is the number of events queued before new ones are dropped.
	Buffer int
	// PublishTimeout bounds a single sink delivery. Zero means no bound.
	PublishTimeout time.Duration
	// Metrics is optional.
	Metrics *monitoring.Metrics
}

// Fanout delivers events to every sink from a single background worker.
// Enqueue never blocks: when the queue is full the event is dropped and
// counted, so a slow sink cannot stall a camera's frame loop.
type Fanout struct {
	sinks   []Sink
	ch      chan Event
	cfg     FanoutConfig
	dropped int64
	done    chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewFanout creates a fan-out over the given sinks.
func NewFanout(cfg FanoutConfig, sinks ...Sink) *Fanout {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Fanout{
		sinks: sinks,
		ch:    make(chan Event, cfg.Buffer),
		cfg:   cfg,
		done:  make(chan struct{}),
	}
}

// Sinks returns the configured sink names.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start launches the delivery worker. It drains the queue until Close is
// called or ctx is cancelled.
func (f *Fanout) Start(ctx context.Context) {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return
	}
	f.started = true
	f.mu.Unlock()

	go func() {
		defer close(f.done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.ch:
				if !ok {
					return
				}
				f.deliver(ctx, ev)
			}
		}
	}()
}

func (f *Fanout) deliver(ctx context.Context, ev Event) {
	for _, s := range f.sinks {
		pctx, cancel := ctx, context.CancelFunc(func() {})
		if f.cfg.PublishTimeout > 0 {
			pctx, cancel = context.WithTimeout(ctx, f.cfg.PublishTimeout)
		}
		err := s.Publish(pctx, ev)
		cancel()
		if err != nil {
			monitoring.Logf("[sink] %s: failed to publish event %s: %v", s.Name(), ev.ID, err)
			if f.cfg.Metrics != nil {
				f.cfg.Metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
		}
	}
}

// Enqueue queues events for delivery without blocking.
func (f *Fanout) Enqueue(events ...Event) {
	if len(f.sinks) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, ev := range events {
		select {
		case f.ch <- ev:
		default:
			f.dropped++
			monitoring.Debugf("[sink] queue full, dropped event %s", ev.ID)
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (f *Fanout) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops accepting events and waits for the worker to drain the
// queue. Safe to call more than once.
func (f *Fanout) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.ch)
	started := f.started
	f.mu.Unlock()

	if started {
		<-f.done
	}
}
