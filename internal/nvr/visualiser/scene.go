package visualiser

import (
	"math"

	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"gonum.org/v1/gonum/spatial/r2"
)

// Scene is what gets drawn.
type Scene struct {
	CameraID string
	Tracks   []l3tracks.Track
	Zones    []l2zones.Zone
}

// confirmed returns the tracks worth drawing.
func (s Scene) confirmed() []l3tracks.Track {
	var out []l3tracks.Track
	for _, t := range s.Tracks {
		if t.Confirmed && len(t.Path) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// bounds returns the extent of every path point and zone vertex, or a
// unit box for an empty scene.
func (s Scene) bounds() r2.Box {
	b := r2.Box{Min: r2.Vec{X: math.Inf(1), Y: math.Inf(1)}, Max: r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}}
	grow := func(p r2.Vec) {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	for _, t := range s.confirmed() {
		for _, p := range t.Path {
			grow(p)
		}
	}
	for _, z := range s.Zones {
		for _, p := range z.Vertices() {
			grow(p)
		}
	}
	if math.IsInf(b.Min.X, 1) {
		return r2.Box{Max: r2.Vec{X: 1, Y: 1}}
	}
	return b
}

// closedRing returns the zone outline with the first vertex repeated.
func closedRing(z l2zones.Zone) []r2.Vec {
	vs := z.Vertices()
	return append(vs, vs[0])
}
