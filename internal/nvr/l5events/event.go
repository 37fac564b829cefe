package l5events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"gonum.org/v1/gonum/spatial/r2"
)

// Event is an accepted signal, immutable once recorded.
type Event struct {
	ID         string
	CameraID   string
	Signal     l4signals.Signal
	Timestamp  time.Time // frame time the signal was raised
	RecordedAt time.Time // never before Timestamp
}

func (e Event) Kind() l4signals.Kind       { return e.Signal.Kind() }
func (e Event) Subject() l4signals.Subject { return e.Signal.Subject() }

// ZoneName is set for zone violations only.
func (e Event) ZoneName() string {
	if zv, ok := e.Signal.(l4signals.ZoneViolation); ok {
		return zv.ZoneName
	}
	return ""
}

// Duration is the dwell time for loitering events, zero otherwise.
func (e Event) Duration() time.Duration {
	if l, ok := e.Signal.(l4signals.Loitering); ok {
		return l.Duration
	}
	return 0
}

// Point is a location in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is the flat, serialisable form of an Event shared by the HTTP
// API, the SQLite archive, the Kafka topic and the S3 archive.
type Record struct {
	ID              string         `json:"id"`
	CameraID        string         `json:"camera_id"`
	Kind            l4signals.Kind `json:"kind"`
	ObjectType      string         `json:"object_type"`
	TrackID         string         `json:"track_id,omitempty"`
	Confidence      float64        `json:"confidence"`
	Location        Point          `json:"location"`
	ZoneName        string         `json:"zone_name,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	RecordedAt      time.Time      `json:"recorded_at"`
}

// Record flattens the event.
func (e Event) Record() Record {
	s := e.Subject()
	r := Record{
		ID:         e.ID,
		CameraID:   e.CameraID,
		Kind:       e.Kind(),
		ObjectType: s.ObjectType,
		TrackID:    s.TrackID,
		Confidence: s.Confidence,
		Location:   Point{X: s.Location.X, Y: s.Location.Y},
		ZoneName:   e.ZoneName(),
		Timestamp:  e.Timestamp,
		RecordedAt: e.RecordedAt,
	}
	if e.Kind() == l4signals.KindLoitering {
		secs := e.Duration().Seconds()
		r.DurationSeconds = &secs
	}
	return r
}

// Event rebuilds the typed event from its flat form.
func (r Record) Event() (Event, error) {
	who := l4signals.Subject{
		TrackID:    r.TrackID,
		ObjectType: r.ObjectType,
		Confidence: r.Confidence,
		Location:   r2.Vec{X: r.Location.X, Y: r.Location.Y},
	}
	var sig l4signals.Signal
	switch r.Kind {
	case l4signals.KindObjectDetected:
		sig = l4signals.ObjectDetected{Who: who}
	case l4signals.KindZoneViolation:
		sig = l4signals.ZoneViolation{Who: who, ZoneName: r.ZoneName}
	case l4signals.KindLoitering:
		var d time.Duration
		if r.DurationSeconds != nil {
			d = time.Duration(*r.DurationSeconds * float64(time.Second))
		}
		sig = l4signals.Loitering{Who: who, Duration: d}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", r.Kind)
	}
	return Event{
		ID:         r.ID,
		CameraID:   r.CameraID,
		Signal:     sig,
		Timestamp:  r.Timestamp,
		RecordedAt: r.RecordedAt,
	}, nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Record())
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	ev, err := r.Event()
	if err != nil {
		return err
	}
	*e = ev
	return nil
}

func (e Event) String() string {
	s := e.Subject()
	if zone := e.ZoneName(); zone != "" {
		return fmt.Sprintf("%s %s %s %s zone=%s", e.CameraID, e.Kind(), s.ObjectType, s.TrackID, zone)
	}
	return fmt.Sprintf("%s %s %s %s", e.CameraID, e.Kind(), s.ObjectType, s.TrackID)
}
