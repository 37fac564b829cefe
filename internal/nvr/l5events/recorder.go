package l5events

import (
	"slices"
	"sync"
	"time"

	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/timeutil"
	"github.com/google/uuid"
)

// RecorderConfig holds the cooldown and history bound.
type RecorderConfig struct {
	Cooldown  time.Duration // Minimum gap between two events with the same key
	MaxEvents int           // History bound; oldest evicted first
}

// RecorderConfigFromTuning builds a RecorderConfig from a loaded TuningConfig.
func RecorderConfigFromTuning(cfg *config.TuningConfig) RecorderConfig {
	return RecorderConfig{
		Cooldown:  cfg.GetAlertCooldown(),
		MaxEvents: cfg.GetMaxEventsPerCamera(),
	}
}

type cooldownKey struct {
	kind l4signals.Kind
	// target is the signal's dedup key; trackID is kept separately so
	// entries can be dropped when the track expires.
	target  string
	trackID string
}

// Recorder applies the alert cooldown to one camera's signals and keeps
// its bounded event history. Record is called from the camera's frame
// loop; List may be called concurrently from API handlers.
type Recorder struct {
	CameraID string
	Config   RecorderConfig

	clock   timeutil.Clock
	metrics *monitoring.Metrics
	newID   func() string

	mu         sync.RWMutex
	lastSeen   map[cooldownKey]time.Time
	history    []Event // oldest first
	suppressed int
}

// NewRecorder creates an event recorder for one camera.
func NewRecorder(cameraID string, cfg RecorderConfig, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{
		CameraID: cameraID,
		Config:   cfg,
		clock:    clock,
		newID:    uuid.NewString,
		lastSeen: make(map[cooldownKey]time.Time),
	}
}

// SetMetrics attaches Prometheus counters. Nil disables metrics.
func (r *Recorder) SetMetrics(m *monitoring.Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Record turns this frame's signals into events. A signal is accepted
// when its (kind, target) key has never been recorded, or was last
// recorded more than Cooldown before now. Accepted events are appended to
// the history and returned in signal order.
func (r *Recorder) Record(signals []l4signals.Signal, now time.Time) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recorded []Event
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		key := cooldownKey{kind: sig.Kind(), target: sig.DedupKey(), trackID: sig.Subject().TrackID}
		if last, ok := r.lastSeen[key]; ok && now.Sub(last) <= r.Config.Cooldown {
			r.suppressed++
			if r.metrics != nil {
				r.metrics.EventsSuppressed.WithLabelValues(r.CameraID, string(sig.Kind())).Inc()
			}
			monitoring.Debugf("[events] %s: suppressed %s for %s (cooldown)", r.CameraID, sig.Kind(), sig.DedupKey())
			continue
		}
		r.lastSeen[key] = now

		recordedAt := r.clock.Now()
		if recordedAt.Before(now) {
			recordedAt = now
		}
		ev := Event{
			ID:         r.newID(),
			CameraID:   r.CameraID,
			Signal:     sig,
			Timestamp:  now,
			RecordedAt: recordedAt,
		}
		r.append(ev)
		recorded = append(recorded, ev)
		if r.metrics != nil {
			r.metrics.EventsRecorded.WithLabelValues(r.CameraID, string(sig.Kind())).Inc()
		}
	}
	return recorded
}

func (r *Recorder) append(ev Event) {
	r.history = append(r.history, ev)
	if limit := r.Config.MaxEvents; limit > 0 && len(r.history) > limit {
		r.history = slices.Delete(r.history, 0, len(r.history)-limit)
	}
}

// List returns up to limit events, most recent first. A limit of zero or
// less returns the whole history.
func (r *Recorder) List(limit int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, 0, n)
	for i := len(r.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.history[i])
	}
	return out
}

// Len returns the number of events held.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// Suppressed returns how many signals the cooldown has discarded.
func (r *Recorder) Suppressed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suppressed
}

// Forget drops cooldown entries for a track that no longer exists. Track
// ids are never reused, so this cannot let a duplicate through.
func (r *Recorder) Forget(trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.lastSeen {
		if k.trackID == trackID {
			delete(r.lastSeen, k)
		}
	}
}

// Reset clears the history and every cooldown entry.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
	r.lastSeen = make(map[cooldownKey]time.Time)
	r.suppressed = 0
}
