package l4signals

import (
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"gonum.org/v1/gonum/spatial/r2"
)

// Kind names a signal and the event it may become.
type Kind string

const (
	KindObjectDetected Kind = "object_detected"
	KindZoneViolation  Kind = "zone_violation"
	KindLoitering      Kind = "loitering_detected"
)

// Subject is the track a signal is about, captured when the signal was
// raised.
type Subject struct {
	TrackID    string
	ObjectType string
	Confidence float64
	Location   r2.Vec
}

func subjectOf(t l3tracks.Track) Subject {
	return Subject{
		TrackID:    t.ID,
		ObjectType: t.ObjectType,
		Confidence: t.Confidence,
		Location:   t.Center,
	}
}

// Signal is one of ObjectDetected, ZoneViolation or Loitering.
type Signal interface {
	Kind() Kind
	Subject() Subject
	// DedupKey identifies the target for cooldown purposes within a kind.
	DedupKey() string

	sealed()
}

// ObjectDetected is raised once when a track is confirmed.
type ObjectDetected struct {
	Who Subject
}

func (ObjectDetected) Kind() Kind         { return KindObjectDetected }
func (s ObjectDetected) Subject() Subject { return s.Who }
func (s ObjectDetected) DedupKey() string { return s.Who.TrackID }
func (ObjectDetected) sealed()            {}

// ZoneViolation is raised every frame a confirmed track's centre lies in
// a restricted zone.
type ZoneViolation struct {
	Who      Subject
	ZoneName string
}

func (ZoneViolation) Kind() Kind         { return KindZoneViolation }
func (s ZoneViolation) Subject() Subject { return s.Who }
func (s ZoneViolation) DedupKey() string { return s.Who.TrackID + "|" + s.ZoneName }
func (ZoneViolation) sealed()            {}

// Loitering is raised every frame a confirmed track has existed for at
// least the loitering threshold.
type Loitering struct {
	Who      Subject
	Duration time.Duration
}

func (Loitering) Kind() Kind         { return KindLoitering }
func (s Loitering) Subject() Subject { return s.Who }
func (s Loitering) DedupKey() string { return s.Who.TrackID }
func (Loitering) sealed()            {}

// FromTransitions turns confirmation transitions into ObjectDetected
// signals. Expiry is bookkeeping and produces nothing.
func FromTransitions(transitions []l3tracks.Transition) []Signal {
	var out []Signal
	for _, tr := range transitions {
		if tr.Kind == l3tracks.TransitionConfirmed {
			out = append(out, ObjectDetected{Who: subjectOf(tr.Track)})
		}
	}
	return out
}
