package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type job struct {
	frame l1detections.Frame
	reply chan FrameResult // nil for fire-and-forget

	// fn, when set, runs on the camera's worker in place of a frame.
	fn   func() error
	done chan error
}

// Dispatcher gives each camera its own queue and worker goroutine, so
// frames for one camera are processed in arrival order and never
// concurrently, while different cameras proceed in parallel. A full
// queue only blocks submitters for that camera.
type Dispatcher struct {
	registry *Registry
	buffer   int

	// mu guards queues and closed. It is never held across a channel send.
	mu      sync.Mutex
	queues  map[string]chan job
	closed  bool
	closing chan struct{}
	senders sync.WaitGroup
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher over the registry. buffer is the
// per-camera queue depth.
func NewDispatcher(registry *Registry, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		registry: registry,
		buffer:   buffer,
		queues:   make(map[string]chan job),
		closing:  make(chan struct{}),
	}
}

// acquire returns the camera's queue, starting its worker on first use,
// and registers the caller as a sender. Callers must call d.senders.Done.
func (d *Dispatcher) acquire(cameraID string) (chan job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}
	q, ok := d.queues[cameraID]
	if !ok {
		q = make(chan job, d.buffer)
		d.queues[cameraID] = q
		d.wg.Add(1)
		go d.worker(cameraID, q)
	}
	d.senders.Add(1)
	return q, nil
}

func (d *Dispatcher) worker(cameraID string, q chan job) {
	defer d.wg.Done()
	for j := range q {
		if j.fn != nil {
			j.done <- j.fn()
			continue
		}
		// Resolve per job: the camera may have been cleared and recreated.
		res := d.registry.Ensure(cameraID).ProcessFrame(j.frame)
		if j.reply != nil {
			j.reply <- res
		}
	}
}

// Submit queues a frame and waits for its result.
func (d *Dispatcher) Submit(ctx context.Context, frame l1detections.Frame) (FrameResult, error) {
	reply := make(chan FrameResult, 1)
	if err := d.enqueue(ctx, frame.CameraID, job{frame: frame, reply: reply}); err != nil {
		return FrameResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return FrameResult{}, ctx.Err()
	}
}

// SubmitAsync queues a frame without waiting, blocking only while the
// camera's queue is full.
func (d *Dispatcher) SubmitAsync(ctx context.Context, frame l1detections.Frame) error {
	return d.enqueue(ctx, frame.CameraID, job{frame: frame})
}

// Do runs fn on the camera's worker, after every frame already queued for
// it and before any queued later. If ctx ends after fn was queued, fn
// still runs but its result is lost.
func (d *Dispatcher) Do(ctx context.Context, cameraID string, fn func() error) error {
	done := make(chan error, 1)
	if err := d.enqueue(ctx, cameraID, job{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, cameraID string, j job) error {
	q, err := d.acquire(cameraID)
	if err != nil {
		return err
	}
	defer d.senders.Done()
	select {
	case q <- j:
		return nil
	case <-d.closing:
		return ErrDispatcherClosed
	case <-ctx.Done():
		d.dropped.Add(1)
		monitoring.Logf("[pipeline] %s: job dropped, queue full: %v", cameraID, ctx.Err())
		return ctx.Err()
	}
}

// Dropped returns how many jobs were abandoned while waiting for a full
// queue.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting frames, releases blocked submitters and waits for
// queued frames to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.closing)
	d.mu.Unlock()

	// No sender can register once closed is set, so after this wait
	// nothing writes to the queues.
	d.senders.Wait()
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}
