package api

import (
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
)

// trackView is the JSON form of a track.
type trackView struct {
	TrackID    string           `json:"track_id"`
	ObjectType string           `json:"object_type"`
	Center     l5events.Point   `json:"center"`
	Box        [4]float64       `json:"box"`
	Path       []l5events.Point `json:"path"`
	Confidence float64          `json:"confidence"`
	Age        int              `json:"age"`
	Hits       int              `json:"hits"`
	Misses     int              `json:"misses"`
	FirstSeen  time.Time        `json:"first_seen"`
	LastSeen   time.Time        `json:"last_seen"`
	Confirmed  bool             `json:"confirmed"`
}

// trackDetail adds the names of the zones containing the track centre.
type trackDetail struct {
	trackView
	Zones []string `json:"zones"`
}

func point(v r2.Vec) l5events.Point { return l5events.Point{X: v.X, Y: v.Y} }

func newTrackView(t l3tracks.Track) trackView {
	return trackView{
		TrackID:    t.ID,
		ObjectType: t.ObjectType,
		Center:     point(t.Center),
		Box:        [4]float64{t.Box.Min.X, t.Box.Min.Y, t.Box.Max.X, t.Box.Max.Y},
		Path:       lo.Map(t.Path, func(v r2.Vec, _ int) l5events.Point { return point(v) }),
		Confidence: t.Confidence,
		Age:        t.Age,
		Hits:       t.Hits,
		Misses:     t.Misses,
		FirstSeen:  t.FirstSeen,
		LastSeen:   t.LastSeen,
		Confirmed:  t.Confirmed,
	}
}

func records(events []l5events.Event) []l5events.Record {
	return lo.Map(events, func(e l5events.Event, _ int) l5events.Record { return e.Record() })
}
