package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/timeutil"
	"gonum.org/v1/gonum/spatial/r2"
)

// Camera is the per-camera context: everything the pipeline mutates for
// one camera lives here.
type Camera struct {
	ID string

	Zones    *l2zones.Store
	Tracker  *l3tracks.Tracker
	Monitor  *l4signals.Monitor
	Recorder *l5events.Recorder

	cfg     Config
	clock   timeutil.Clock
	metrics *monitoring.Metrics
	fanout  *l5events.Fanout

	// frameMu makes ProcessFrame non-reentrant for this camera.
	frameMu   sync.Mutex
	frames    int64
	dropped   int64
	lastFrame time.Time
}

// NewCamera builds an empty camera context.
func NewCamera(id string, cfg Config, opts Options) *Camera {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	rec := l5events.NewRecorder(id, cfg.Recorder, clock)
	rec.SetMetrics(opts.Metrics)
	return &Camera{
		ID:       id,
		Zones:    l2zones.NewStore(),
		Tracker:  l3tracks.NewTracker(cfg.Tracker),
		Monitor:  l4signals.NewMonitor(cfg.Monitor),
		Recorder: rec,
		cfg:      cfg,
		clock:    clock,
		metrics:  opts.Metrics,
		fanout:   opts.Fanout,
	}
}

// FrameResult is what one frame produced.
type FrameResult struct {
	CameraID    string                   `json:"camera_id"`
	Timestamp   time.Time                `json:"timestamp"`
	Accepted    int                      `json:"accepted_detections"`
	Rejected    []l1detections.Rejection `json:"-"`
	Transitions []l3tracks.Transition    `json:"-"`
	Signals     []l4signals.Signal       `json:"-"`
	Events      []l5events.Event         `json:"events"`
}

// ProcessFrame runs one frame through tracking, zone monitoring and
// event recording. Frames for the same camera are serialised; the
// frame's timestamp drives dwell and cooldown, falling back to the clock
// when unset.
func (c *Camera) ProcessFrame(frame l1detections.Frame) FrameResult {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	now := frame.Timestamp
	if now.IsZero() {
		now = c.clock.Now()
	}

	accepted, rejected := l1detections.Filter(frame.Detections, c.cfg.MinConfidence)
	for _, r := range rejected {
		monitoring.Debugf("[pipeline] %s: dropped detection %v: %v", c.ID, r.Detection, r.Reason)
	}

	transitions := c.Tracker.Update(accepted, now)
	for _, tr := range transitions {
		switch tr.Kind {
		case l3tracks.TransitionConfirmed:
			monitoring.Debugf("[pipeline] %s: confirmed %s", c.ID, tr.Track)
		case l3tracks.TransitionExpired:
			c.Recorder.Forget(tr.Track.ID)
		}
	}

	signals := l4signals.FromTransitions(transitions)
	signals = append(signals, c.Monitor.Evaluate(c.Tracker.ConfirmedTracks(), c.Zones.List(), now)...)

	events := c.Recorder.Record(signals, now)
	for _, ev := range events {
		monitoring.Logf("[pipeline] event %s", ev)
	}
	if c.fanout != nil && len(events) > 0 {
		c.fanout.Enqueue(events...)
	}

	c.frames++
	c.dropped += int64(len(rejected))
	c.lastFrame = now
	if c.metrics != nil {
		c.metrics.FramesProcessed.WithLabelValues(c.ID).Inc()
		if len(rejected) > 0 {
			c.metrics.DetectionsDropped.WithLabelValues(c.ID).Add(float64(len(rejected)))
		}
		c.metrics.ActiveTracks.WithLabelValues(c.ID).Set(float64(c.Tracker.Len()))
	}

	return FrameResult{
		CameraID:    c.ID,
		Timestamp:   now,
		Accepted:    len(accepted),
		Rejected:    rejected,
		Transitions: transitions,
		Signals:     signals,
		Events:      events,
	}
}

// Tracks lists the current tracks.
func (c *Camera) Tracks() []l3tracks.Track {
	return c.Tracker.Tracks()
}

// Events lists recent events, most recent first. A non-positive limit
// uses the configured default.
func (c *Camera) Events(limit int) []l5events.Event {
	if limit <= 0 {
		limit = c.cfg.DefaultEventLimit
	}
	return c.Recorder.List(limit)
}

// Track returns one track by id.
func (c *Camera) Track(id string) (l3tracks.Track, error) {
	t, err := c.Tracker.Get(id)
	if err != nil {
		return l3tracks.Track{}, fmt.Errorf("camera %s: %w: %q", c.ID, err, id)
	}
	return t, nil
}

// ZonesAt lists the zones containing a point, in insertion order.
func (c *Camera) ZonesAt(p r2.Vec) []l2zones.Zone {
	return c.Zones.Containing(p)
}

// reset drops tracks, cooldowns and history once the camera has been
// removed from its registry.
func (c *Camera) reset() {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	c.Tracker.Reset()
	c.Recorder.Reset()
}

// ListZones lists the configured zones in insertion order.
func (c *Camera) ListZones() []l2zones.Zone {
	return c.Zones.List()
}

// AddZone validates and stores a zone.
func (c *Camera) AddZone(spec l2zones.Spec) (l2zones.Zone, error) {
	z, err := spec.Build()
	if err != nil {
		return l2zones.Zone{}, err
	}
	added, err := c.Zones.Add(z, c.clock.Now())
	if err != nil {
		return l2zones.Zone{}, err
	}
	monitoring.Logf("[pipeline] %s: added %s zone %q (restricted=%v)", c.ID, added.Kind, added.Name, added.Restricted)
	return added, nil
}

// RemoveZone deletes a zone by name.
func (c *Camera) RemoveZone(name string) error {
	if err := c.Zones.Remove(name); err != nil {
		return fmt.Errorf("camera %s: %w", c.ID, err)
	}
	monitoring.Logf("[pipeline] %s: removed zone %q", c.ID, name)
	return nil
}

// CameraStats summarises one camera.
type CameraStats struct {
	ActiveTracks    int            `json:"active_tracks"`
	ConfirmedTracks int            `json:"confirmed_tracks"`
	Zones           int            `json:"zones"`
	RecentEvents    int            `json:"recent_events"`
	Suppressed      int            `json:"suppressed_signals"`
	FramesProcessed int64          `json:"frames_processed"`
	DroppedDets     int64          `json:"dropped_detections"`
	LastFrame       *time.Time     `json:"last_frame,omitempty"`
	Lifetime        l3tracks.Stats `json:"track_lifetime"`
}

// Stats returns a snapshot of the camera counters.
func (c *Camera) Stats() CameraStats {
	c.frameMu.Lock()
	frames, dropped, last := c.frames, c.dropped, c.lastFrame
	c.frameMu.Unlock()

	s := CameraStats{
		ActiveTracks:    c.Tracker.Len(),
		ConfirmedTracks: len(c.Tracker.ConfirmedTracks()),
		Zones:           c.Zones.Len(),
		RecentEvents:    c.Recorder.Len(),
		Suppressed:      c.Recorder.Suppressed(),
		FramesProcessed: frames,
		DroppedDets:     dropped,
		Lifetime:        c.Tracker.Stats(),
	}
	if !last.IsZero() {
		s.LastFrame = &last
	}
	return s
}
