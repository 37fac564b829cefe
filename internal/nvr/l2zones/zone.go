package l2zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// Kind is the geometry type of a zone.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindPolygon   Kind = "polygon"
)

var (
	ErrDegenerateGeometry = errors.New("degenerate zone geometry")
	ErrUnknownKind        = errors.New("unknown zone type")
	ErrDuplicateZone      = errors.New("zone name already exists")
	ErrZoneNotFound       = errors.New("zone not found")
	ErrMissingName        = errors.New("zone name is required")
)

// Zone is a named region of the camera frame.
type Zone struct {
	Name       string
	Kind       Kind
	Restricted bool
	CreatedAt  time.Time

	rect     r2.Box
	vertices []r2.Vec
}

// NewRectangle builds a rectangle zone. The corners are not reordered:
// x1 must be below x2 and y1 below y2.
func NewRectangle(name string, x1, y1, x2, y2 float64, restricted bool) (Zone, error) {
	if name == "" {
		return Zone{}, ErrMissingName
	}
	if !allFinite(x1, y1, x2, y2) {
		return Zone{}, fmt.Errorf("%w: non-finite rectangle coordinate", ErrDegenerateGeometry)
	}
	if x1 >= x2 || y1 >= y2 {
		return Zone{}, fmt.Errorf("%w: rectangle needs x1<x2 and y1<y2, got (%g,%g,%g,%g)",
			ErrDegenerateGeometry, x1, y1, x2, y2)
	}
	return Zone{
		Name:       name,
		Kind:       KindRectangle,
		Restricted: restricted,
		rect:       r2.Box{Min: r2.Vec{X: x1, Y: y1}, Max: r2.Vec{X: x2, Y: y2}},
	}, nil
}

// NewPolygon builds a polygon zone from at least three ordered vertices.
// The polygon is implicitly closed.
func NewPolygon(name string, vertices []r2.Vec, restricted bool) (Zone, error) {
	if name == "" {
		return Zone{}, ErrMissingName
	}
	if len(vertices) < 3 {
		return Zone{}, fmt.Errorf("%w: polygon needs at least 3 vertices, got %d",
			ErrDegenerateGeometry, len(vertices))
	}
	for _, v := range vertices {
		if !allFinite(v.X, v.Y) {
			return Zone{}, fmt.Errorf("%w: non-finite polygon vertex", ErrDegenerateGeometry)
		}
	}
	vs := make([]r2.Vec, len(vertices))
	copy(vs, vertices)
	return Zone{
		Name:       name,
		Kind:       KindPolygon,
		Restricted: restricted,
		vertices:   vs,
	}, nil
}

// Rect returns the rectangle bounds. Only meaningful for KindRectangle.
func (z Zone) Rect() r2.Box { return z.rect }

// Vertices returns a copy of the polygon vertices, or the four corners of
// a rectangle in clockwise order starting at (x1,y1).
func (z Zone) Vertices() []r2.Vec {
	if z.Kind == KindRectangle {
		return []r2.Vec{
			z.rect.Min,
			{X: z.rect.Max.X, Y: z.rect.Min.Y},
			z.rect.Max,
			{X: z.rect.Min.X, Y: z.rect.Max.Y},
		}
	}
	vs := make([]r2.Vec, len(z.vertices))
	copy(vs, z.vertices)
	return vs
}

// Contains reports whether p lies inside the zone. Points on the boundary
// are inside for both kinds.
func (z Zone) Contains(p r2.Vec) bool {
	switch z.Kind {
	case KindRectangle:
		return z.rect.Contains(p)
	case KindPolygon:
		return polygonContains(z.vertices, p)
	}
	return false
}

// polygonContains is an even-odd ray cast along +X with an explicit
// on-edge check first so boundary points are treated as inside.
func polygonContains(vs []r2.Vec, p r2.Vec) bool {
	n := len(vs)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := vs[j], vs[i]
		if onSegment(a, b, p) {
			return true
		}
		if (b.Y > p.Y) != (a.Y > p.Y) {
			xCross := (a.X-b.X)*(p.Y-b.Y)/(a.Y-b.Y) + b.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

const edgeEpsilon = 1e-9

func onSegment(a, b, p r2.Vec) bool {
	ab := r2.Sub(b, a)
	ap := r2.Sub(p, a)
	if math.Abs(r2.Cross(ab, ap)) > edgeEpsilon*math.Max(1, r2.Norm(ab)) {
		return false
	}
	dot := r2.Dot(ap, ab)
	return dot >= -edgeEpsilon && dot <= r2.Norm2(ab)+edgeEpsilon
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Serialisation
// ---------------------------------------------------------------------------

// Coordinates carries zone geometry as it appears in requests and config
// files: four numbers for a rectangle, or a list of [x,y] pairs for a
// polygon.
type Coordinates struct {
	Flat   []float64
	Points [][2]float64
}

// UnmarshalJSON accepts either [x1,y1,x2,y2] or [[x,y],...].
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		c.Flat, c.Points = flat, nil
		return nil
	}
	var points [][2]float64
	if err := json.Unmarshal(data, &points); err != nil {
		return fmt.Errorf("coordinates must be [x1,y1,x2,y2] or [[x,y],...]: %w", err)
	}
	c.Flat, c.Points = nil, points
	return nil
}

// MarshalJSON writes whichever shape is populated.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	if c.Points != nil {
		return json.Marshal(c.Points)
	}
	return json.Marshal(c.Flat)
}

// UnmarshalYAML mirrors UnmarshalJSON for service config files.
func (c *Coordinates) UnmarshalYAML(node *yaml.Node) error {
	var flat []float64
	if err := node.Decode(&flat); err == nil {
		c.Flat, c.Points = flat, nil
		return nil
	}
	var points [][2]float64
	if err := node.Decode(&points); err != nil {
		return fmt.Errorf("coordinates must be [x1,y1,x2,y2] or [[x,y],...]: %w", err)
	}
	c.Flat, c.Points = nil, points
	return nil
}

// Spec is the external description of a zone used by the HTTP API and
// the service config.
type Spec struct {
	Name        string      `json:"name" yaml:"name"`
	Type        Kind        `json:"type" yaml:"type"`
	Coordinates Coordinates `json:"coordinates" yaml:"coordinates"`
	Restricted  bool        `json:"restricted" yaml:"restricted"`
	CreatedAt   *time.Time  `json:"created_at,omitempty" yaml:"-"`
}

// Build validates the spec and returns the zone it describes. CreatedAt
// is carried over when set.
func (s Spec) Build() (Zone, error) {
	z, err := s.build()
	if err == nil && s.CreatedAt != nil {
		z.CreatedAt = *s.CreatedAt
	}
	return z, err
}

func (s Spec) build() (Zone, error) {
	switch s.Type {
	case KindRectangle:
		if len(s.Coordinates.Flat) != 4 {
			return Zone{}, fmt.Errorf("%w: rectangle needs 4 numbers", ErrDegenerateGeometry)
		}
		c := s.Coordinates.Flat
		return NewRectangle(s.Name, c[0], c[1], c[2], c[3], s.Restricted)
	case KindPolygon:
		vs := make([]r2.Vec, 0, len(s.Coordinates.Points))
		for _, p := range s.Coordinates.Points {
			vs = append(vs, r2.Vec{X: p[0], Y: p[1]})
		}
		return NewPolygon(s.Name, vs, s.Restricted)
	default:
		return Zone{}, fmt.Errorf("%w: %q", ErrUnknownKind, s.Type)
	}
}

// Spec returns the external description of the zone.
func (z Zone) Spec() Spec {
	s := Spec{Name: z.Name, Type: z.Kind, Restricted: z.Restricted}
	if !z.CreatedAt.IsZero() {
		created := z.CreatedAt
		s.CreatedAt = &created
	}
	switch z.Kind {
	case KindRectangle:
		s.Coordinates.Flat = []float64{z.rect.Min.X, z.rect.Min.Y, z.rect.Max.X, z.rect.Max.Y}
	case KindPolygon:
		s.Coordinates.Points = make([][2]float64, len(z.vertices))
		for i, v := range z.vertices {
			s.Coordinates.Points[i] = [2]float64{v.X, v.Y}
		}
	}
	return s
}

// MarshalJSON encodes the zone in its Spec form.
func (z Zone) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.Spec())
}
