package l3tracks

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
	"gonum.org/v1/gonum/spatial/r2"
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	DistanceThreshold float64 // Maximum centre distance (pixels) for a match
	MinHits           int     // Hits needed before a track is confirmed
	MaxAge            int     // Consecutive misses tolerated; one more expires the track
	MaxPathLength     int     // Maximum centre history kept per track
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.MustLoadDefaultConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		DistanceThreshold: cfg.GetTrackDistanceThreshold(),
		MinHits:           cfg.GetMinTrackHits(),
		MaxAge:            cfg.GetMaxTrackAge(),
		MaxPathLength:     cfg.GetMaxTrackPathLength(),
	}
}

// Tracker owns the active track set for one camera.
//
// Update must not be called concurrently with itself; the pipeline
// serialises frames per camera. Readers (Tracks, Get, Len) may run
// concurrently with Update.
type Tracker struct {
	Config TrackerConfig

	tracks  []*Track // creation order
	nextSeq uint64

	stats Stats

	mu sync.RWMutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{Config: cfg, nextSeq: 1}
}

// candidate is one admissible (track, detection) pairing.
type candidate struct {
	track *Track
	det   int
	dist  float64
}

// Update folds one frame of detections into the track set and returns
// the lifecycle transitions it caused, confirmations before expiries.
// Detections are expected to be pre-validated (see l1detections.Filter).
func (t *Tracker) Update(dets []l1detections.Detection, now time.Time) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var transitions []Transition

	// Step 1: score every same-type pair within the gate.
	var cands []candidate
	for _, track := range t.tracks {
		for i, det := range dets {
			if det.ObjectType != track.ObjectType {
				continue
			}
			d := r2.Norm(r2.Sub(det.Center(), track.Center))
			if d <= t.Config.DistanceThreshold {
				cands = append(cands, candidate{track: track, det: i, dist: d})
			}
		}
	}

	// Step 2: greedy assignment, smallest distance first. Ties go to the
	// older track, then to the earlier detection.
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		if c := cmp.Compare(a.track.seq, b.track.seq); c != 0 {
			return c
		}
		return cmp.Compare(a.det, b.det)
	})
	matchedTrack := make(map[*Track]int, len(cands))
	matchedDet := make([]bool, len(dets))
	for _, c := range cands {
		if _, taken := matchedTrack[c.track]; taken || matchedDet[c.det] {
			continue
		}
		matchedTrack[c.track] = c.det
		matchedDet[c.det] = true
	}

	// Step 3 and 4: update matched tracks, age out unmatched ones.
	kept := t.tracks[:0]
	var expired []Transition
	for _, track := range t.tracks {
		track.Age++
		if di, ok := matchedTrack[track]; ok {
			t.observe(track, dets[di], now)
			track.Hits++
			track.Misses = 0
			if t.promote(track) {
				transitions = append(transitions, Transition{Kind: TransitionConfirmed, Track: track.Snapshot()})
			}
			kept = append(kept, track)
			continue
		}
		track.Misses++
		if track.Misses > t.Config.MaxAge {
			t.stats.Expired++
			expired = append(expired, Transition{Kind: TransitionExpired, Track: track.Snapshot()})
			continue
		}
		kept = append(kept, track)
	}
	// Clear the tail so removed tracks can be collected.
	for i := len(kept); i < len(t.tracks); i++ {
		t.tracks[i] = nil
	}
	t.tracks = kept

	// Step 5: start tracks for unmatched detections, in detection order.
	for i, det := range dets {
		if matchedDet[i] {
			continue
		}
		track := t.initTrack(det, now)
		if t.promote(track) {
			transitions = append(transitions, Transition{Kind: TransitionConfirmed, Track: track.Snapshot()})
		}
	}

	return append(transitions, expired...)
}

// observe copies the matched detection into the track.
func (t *Tracker) observe(track *Track, det l1detections.Detection, now time.Time) {
	track.Center = det.Center()
	track.Box = det.Box
	track.Confidence = det.Confidence
	track.LastSeen = now
	track.Path = append(track.Path, track.Center)
	if limit := t.Config.MaxPathLength; limit > 0 && len(track.Path) > limit {
		track.Path = slices.Clone(track.Path[len(track.Path)-limit:])
	}
}

// promote confirms a track once it has enough hits. It reports true only
// on the frame the track becomes confirmed.
func (t *Tracker) promote(track *Track) bool {
	if track.Confirmed || track.Hits < t.Config.MinHits {
		return false
	}
	track.Confirmed = true
	t.stats.Confirmed++
	return true
}

func (t *Tracker) initTrack(det l1detections.Detection, now time.Time) *Track {
	seq := t.nextSeq
	t.nextSeq++
	center := det.Center()
	track := &Track{
		ID:         formatTrackID(seq),
		ObjectType: det.ObjectType,
		Center:     center,
		Box:        det.Box,
		Path:       []r2.Vec{center},
		Confidence: det.Confidence,
		Hits:       1,
		FirstSeen:  now,
		LastSeen:   now,
		seq:        seq,
	}
	t.tracks = append(t.tracks, track)
	t.stats.Created++
	return track
}

// Tracks returns a snapshot of all active tracks in creation order.
func (t *Tracker) Tracks() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Track, len(t.tracks))
	for i, track := range t.tracks {
		out[i] = track.Snapshot()
	}
	return out
}

// ConfirmedTracks returns a snapshot of confirmed tracks in creation order.
func (t *Tracker) ConfirmedTracks() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Track
	for _, track := range t.tracks {
		if track.Confirmed {
			out = append(out, track.Snapshot())
		}
	}
	return out
}

// Get returns a snapshot of the track with the given id.
func (t *Tracker) Get(id string) (Track, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, track := range t.tracks {
		if track.ID == id {
			return track.Snapshot(), nil
		}
	}
	return Track{}, ErrTrackNotFound
}

// Stats counts lifecycle events over the tracker's lifetime.
type Stats struct {
	Created   int `json:"created"`
	Confirmed int `json:"confirmed"`
	Expired   int `json:"expired"`
}

// Stats returns the lifetime counters.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Len returns the number of active tracks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks)
}

// Reset drops every track. Identifiers keep increasing so ids are never
// reused for the lifetime of the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
}
