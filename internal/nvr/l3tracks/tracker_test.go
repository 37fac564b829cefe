package l3tracks

import (
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() TrackerConfig {
	return TrackerConfig{DistanceThreshold: 100, MinHits: 3, MaxAge: 2, MaxPathLength: 5}
}

// box returns a 50x100 detection centred on (cx, cy).
func box(objectType string, cx, cy float64) l1detections.Detection {
	return l1detections.NewDetection(objectType, 0.9, cx-25, cy-50, cx+25, cy+50)
}

func frame(i int) time.Time { return t0.Add(time.Duration(i) * 100 * time.Millisecond) }

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestNewTrackFromUnmatchedDetection(t *testing.T) {
	tr := NewTracker(testConfig())
	trans := tr.Update([]l1detections.Detection{box("person", 125, 150)}, t0)
	assert.Empty(t, trans)

	tracks := tr.Tracks()
	require.Len(t, tracks, 1)
	got := tracks[0]
	assert.Equal(t, "trk_00000001", got.ID)
	assert.Equal(t, "person", got.ObjectType)
	assert.Equal(t, r2.Vec{X: 125, Y: 150}, got.Center)
	assert.Equal(t, []r2.Vec{{X: 125, Y: 150}}, got.Path)
	assert.Equal(t, 1, got.Hits)
	assert.Equal(t, 0, got.Age)
	assert.Equal(t, 0, got.Misses)
	assert.False(t, got.Confirmed)
	assert.Equal(t, t0, got.FirstSeen)
	assert.Equal(t, t0, got.LastSeen)
}

func TestConfirmationEmittedExactlyOnce(t *testing.T) {
	tr := NewTracker(testConfig())
	det := []l1detections.Detection{l1detections.NewDetection("person", 0.9, 100, 100, 150, 200)}

	var confirmed []Transition
	for i := 0; i < 6; i++ {
		for _, tt := range tr.Update(det, frame(i)) {
			if tt.Kind == TransitionConfirmed {
				confirmed = append(confirmed, tt)
			}
		}
		track := tr.Tracks()[0]
		assert.Equal(t, track.Hits >= 3, track.Confirmed, "frame %d", i)
		if i < 2 {
			assert.Empty(t, confirmed, "no confirmation before min hits (frame %d)", i)
		}
	}
	require.Len(t, confirmed, 1)
	assert.Equal(t, "trk_00000001", confirmed[0].Track.ID)
	assert.Equal(t, 3, confirmed[0].Track.Hits)
	assert.True(t, confirmed[0].Track.Confirmed)
	assert.Equal(t, 1, tr.Stats().Confirmed)
}

func TestMinHitsOneConfirmsOnCreation(t *testing.T) {
	cfg := testConfig()
	cfg.MinHits = 1
	tr := NewTracker(cfg)

	trans := tr.Update([]l1detections.Detection{box("cat", 10, 10)}, t0)
	require.Len(t, trans, 1)
	assert.Equal(t, TransitionConfirmed, trans[0].Kind)

	assert.Empty(t, tr.Update([]l1detections.Detection{box("cat", 10, 10)}, frame(1)))
}

func TestExpiryAfterMaxAgeMisses(t *testing.T) {
	tr := NewTracker(testConfig()) // MaxAge 2
	tr.Update([]l1detections.Detection{box("person", 100, 100)}, frame(0))

	// Two misses are tolerated.
	assert.Empty(t, tr.Update(nil, frame(1)))
	assert.Empty(t, tr.Update(nil, frame(2)))
	require.Equal(t, 1, tr.Len())
	track := tr.Tracks()[0]
	assert.Equal(t, 2, track.Misses)
	assert.Equal(t, 2, track.Age)

	// The third consecutive miss exceeds MaxAge.
	trans := tr.Update(nil, frame(3))
	require.Len(t, trans, 1)
	assert.Equal(t, TransitionExpired, trans[0].Kind)
	assert.Equal(t, "trk_00000001", trans[0].Track.ID)
	assert.Equal(t, 3, trans[0].Track.Misses)
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, 1, tr.Stats().Expired)
}

func TestMatchResetsMisses(t *testing.T) {
	tr := NewTracker(testConfig())
	det := []l1detections.Detection{box("person", 100, 100)}
	tr.Update(det, frame(0))
	tr.Update(nil, frame(1))
	tr.Update(nil, frame(2))
	tr.Update(det, frame(3))
	tr.Update(nil, frame(4))
	tr.Update(nil, frame(5))

	require.Equal(t, 1, tr.Len())
	track := tr.Tracks()[0]
	assert.Equal(t, 2, track.Hits)
	assert.Equal(t, 2, track.Misses)
	assert.Equal(t, 5, track.Age)
	assert.Equal(t, frame(3), track.LastSeen)
}

func TestTrackIDsNeverReused(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 100, 100)}, frame(0))
	for i := 1; i <= 3; i++ {
		tr.Update(nil, frame(i))
	}
	require.Equal(t, 0, tr.Len())

	tr.Update([]l1detections.Detection{box("person", 100, 100)}, frame(4))
	assert.Equal(t, "trk_00000002", tr.Tracks()[0].ID)

	tr.Reset()
	tr.Update([]l1detections.Detection{box("person", 100, 100)}, frame(5))
	assert.Equal(t, "trk_00000003", tr.Tracks()[0].ID)
}

// ---------------------------------------------------------------------------
// Association
// ---------------------------------------------------------------------------

func TestNearestWithinThresholdWins(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 200, 200)}, frame(0))

	// d1 = 60 (inside), d2 = 150 (outside the 100px gate).
	near := box("person", 260, 200)
	far := box("person", 200, 350)
	tr.Update([]l1detections.Detection{far, near}, frame(1))

	first, err := tr.Get("trk_00000001")
	require.NoError(t, err)
	assert.Equal(t, r2.Vec{X: 260, Y: 200}, first.Center)
	assert.Equal(t, 2, first.Hits)
	assert.Equal(t, 2, tr.Len(), "far detection starts its own track")
}

func TestGreedyPrefersGloballySmallestDistance(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 0, 0), box("person", 90, 0)}, frame(0))

	// A detection at x=80 is 80 from trk1 and 10 from trk2; another at x=-10
	// is 10 from trk1. Both tracks should take their 10px partner.
	tr.Update([]l1detections.Detection{box("person", 80, 0), box("person", -10, 0)}, frame(1))

	trk1, _ := tr.Get("trk_00000001")
	trk2, _ := tr.Get("trk_00000002")
	assert.Equal(t, -10.0, trk1.Center.X)
	assert.Equal(t, 80.0, trk2.Center.X)
	assert.Equal(t, 2, tr.Len())
}

func TestEqualDistanceTieGoesToOlderTrack(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 0, 0), box("person", 100, 0)}, frame(0))

	// Exactly 50px from each track.
	tr.Update([]l1detections.Detection{box("person", 50, 0)}, frame(1))

	older, _ := tr.Get("trk_00000001")
	newer, _ := tr.Get("trk_00000002")
	assert.Equal(t, 2, older.Hits)
	assert.Equal(t, 50.0, older.Center.X)
	assert.Equal(t, 1, newer.Hits)
	assert.Equal(t, 1, newer.Misses)
}

func TestObjectTypeNeverChanges(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 100, 100)}, frame(0))
	tr.Update([]l1detections.Detection{box("car", 100, 100)}, frame(1))

	tracks := tr.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "person", tracks[0].ObjectType)
	assert.Equal(t, 1, tracks[0].Misses)
	assert.Equal(t, "car", tracks[1].ObjectType)
}

func TestThresholdIsInclusive(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 0, 0)}, frame(0))
	tr.Update([]l1detections.Detection{box("person", 100, 0)}, frame(1))
	assert.Equal(t, 1, tr.Len())
}

// ---------------------------------------------------------------------------
// Path and snapshots
// ---------------------------------------------------------------------------

func TestPathBoundedOldestDropped(t *testing.T) {
	tr := NewTracker(testConfig()) // MaxPathLength 5
	for i := 0; i < 8; i++ {
		tr.Update([]l1detections.Detection{box("person", float64(10*i), 0)}, frame(i))
	}
	path := tr.Tracks()[0].Path
	require.Len(t, path, 5)
	assert.Equal(t, 30.0, path[0].X)
	assert.Equal(t, 70.0, path[4].X)
}

func TestSnapshotIsIsolated(t *testing.T) {
	tr := NewTracker(testConfig())
	tr.Update([]l1detections.Detection{box("person", 0, 0)}, frame(0))

	snap := tr.Tracks()[0]
	snap.Path[0] = r2.Vec{X: 999, Y: 999}
	snap.Hits = 42

	fresh := tr.Tracks()[0]
	assert.Equal(t, r2.Vec{}, fresh.Path[0])
	assert.Equal(t, 1, fresh.Hits)
}

func TestGetUnknownTrack(t *testing.T) {
	tr := NewTracker(testConfig())
	_, err := tr.Get("trk_00000099")
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestConfirmedTracks(t *testing.T) {
	tr := NewTracker(testConfig())
	for i := 0; i < 3; i++ {
		dets := []l1detections.Detection{box("person", 0, 0)}
		if i == 2 {
			dets = append(dets, box("dog", 500, 500))
		}
		tr.Update(dets, frame(i))
	}
	confirmed := tr.ConfirmedTracks()
	require.Len(t, confirmed, 1)
	assert.Equal(t, "person", confirmed[0].ObjectType)
	assert.Equal(t, Stats{Created: 2, Confirmed: 1}, tr.Stats())
}

func TestConcurrentReadsDuringUpdate(t *testing.T) {
	tr := NewTracker(testConfig())
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = tr.Tracks()
				_ = tr.Len()
			}
		}
	}()

	for i := 0; i < 100; i++ {
		tr.Update([]l1detections.Detection{box("person", float64(i), 0)}, frame(i))
	}
	close(done)
	wg.Wait()
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerConfigFromTuning(t *testing.T) {
	cfg := DefaultTrackerConfig()
	assert.Equal(t, TrackerConfig{DistanceThreshold: 100, MinHits: 3, MaxAge: 30, MaxPathLength: 30}, cfg)
}
