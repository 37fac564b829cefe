package l3tracks

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

var ErrTrackNotFound = errors.New("track not found")

// Track is a persistent identity for one object across frames.
type Track struct {
	ID         string
	ObjectType string // fixed at creation
	Center     r2.Vec
	Box        r2.Box
	Path       []r2.Vec // most recent centres, oldest first
	Confidence float64
	Age        int // frames since creation
	Hits       int // frames matched to a detection
	Misses     int // consecutive frames without a match
	FirstSeen  time.Time
	LastSeen   time.Time
	Confirmed  bool

	// seq orders tracks by creation for the association tie-break.
	seq uint64
}

// Snapshot returns a deep copy that is safe to hand to readers.
func (t *Track) Snapshot() Track {
	c := *t
	c.Path = make([]r2.Vec, len(t.Path))
	copy(c.Path, t.Path)
	return c
}

// Dwell is how long the track has existed as of now.
func (t Track) Dwell(now time.Time) time.Duration {
	return now.Sub(t.FirstSeen)
}

func (t Track) String() string {
	return fmt.Sprintf("%s %s @(%.1f,%.1f) hits=%d misses=%d confirmed=%v",
		t.ID, t.ObjectType, t.Center.X, t.Center.Y, t.Hits, t.Misses, t.Confirmed)
}

// TransitionKind identifies a track lifecycle change.
type TransitionKind string

const (
	TransitionConfirmed TransitionKind = "confirmed"
	TransitionExpired   TransitionKind = "expired"
)

// Transition reports a lifecycle change that happened during one Update.
// Track is the state at the moment of the change.
type Transition struct {
	Kind  TransitionKind
	Track Track
}

func formatTrackID(seq uint64) string {
	return fmt.Sprintf("trk_%08d", seq)
}
