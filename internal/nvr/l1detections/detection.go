package l1detections

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Validation failures. Detections are machine-generated so these never
// reach a caller; they are counted and logged at debug level.
var (
	ErrNonFinite        = errors.New("non-finite coordinate")
	ErrDegenerateBox    = errors.New("degenerate bounding box")
	ErrConfidenceRange  = errors.New("confidence outside [0,1]")
	ErrBelowConfidence  = errors.New("confidence below floor")
	ErrMissingClassName = errors.New("missing object type")
)

// Detection is one object reported by the detector for one frame.
// Box holds (x1,y1) in Min and (x2,y2) in Max, frame pixel coordinates.
type Detection struct {
	ObjectType string
	Confidence float64
	Box        r2.Box
}

// NewDetection builds a Detection from corner coordinates without
// reordering them, so an inverted box stays invalid.
func NewDetection(objectType string, confidence, x1, y1, x2, y2 float64) Detection {
	return Detection{
		ObjectType: objectType,
		Confidence: confidence,
		Box:        r2.Box{Min: r2.Vec{X: x1, Y: y1}, Max: r2.Vec{X: x2, Y: y2}},
	}
}

// Center returns the midpoint of the bounding box.
func (d Detection) Center() r2.Vec {
	return d.Box.Center()
}

// Validate reports why a detection must be dropped, or nil if it may be
// tracked. minConfidence of 0 disables the confidence floor.
func (d Detection) Validate(minConfidence float64) error {
	if d.ObjectType == "" {
		return ErrMissingClassName
	}
	for _, v := range []float64{d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y, d.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	if d.Box.Min.X >= d.Box.Max.X || d.Box.Min.Y >= d.Box.Max.Y {
		return ErrDegenerateBox
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrConfidenceRange
	}
	if d.Confidence < minConfidence {
		return ErrBelowConfidence
	}
	return nil
}

func (d Detection) String() string {
	return fmt.Sprintf("%s(%.2f) [%.1f,%.1f,%.1f,%.1f]",
		d.ObjectType, d.Confidence, d.Box.Min.X, d.Box.Min.Y, d.Box.Max.X, d.Box.Max.Y)
}

// Rejection pairs a dropped detection with the reason it was dropped.
type Rejection struct {
	Detection Detection
	Reason    error
}

// Filter returns the detections that pass Validate, preserving order,
// together with the rejected ones.
func Filter(detections []Detection, minConfidence float64) ([]Detection, []Rejection) {
	kept := make([]Detection, 0, len(detections))
	var rejected []Rejection
	for _, d := range detections {
		if err := d.Validate(minConfidence); err != nil {
			rejected = append(rejected, Rejection{Detection: d, Reason: err})
			continue
		}
		kept = append(kept, d)
	}
	return kept, rejected
}

// Frame is the ordered detection list for one camera at one instant.
// A zero Timestamp means "stamp on arrival".
type Frame struct {
	CameraID   string
	Timestamp  time.Time
	Detections []Detection
}
