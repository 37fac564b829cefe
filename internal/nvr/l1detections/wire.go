package l1detections

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// WireDetection is the detector's JSON shape: {"class","score","box":[x1,y1,x2,y2]}.
type WireDetection struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box"`
}

// WireFrame is the JSON envelope carried on Kafka, the HTTP ingest
// endpoint and dev fixture files.
type WireFrame struct {
	CameraID   string          `json:"camera_id"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Detections []WireDetection `json:"detections"`
}

// ErrMissingCamera is returned when a frame arrives without a camera id.
var ErrMissingCamera = errors.New("frame has no camera_id")

// DecodeFrame parses a JSON detection frame. Boxes that do not carry
// exactly four numbers are turned into NaN boxes so the validation filter
// drops them with the other malformed detections instead of failing the
// whole frame.
func DecodeFrame(data []byte) (Frame, error) {
	var wf WireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("failed to parse detection frame: %w", err)
	}
	return wf.Frame()
}

// Frame converts the wire envelope into a Frame.
func (wf WireFrame) Frame() (Frame, error) {
	if wf.CameraID == "" {
		return Frame{}, ErrMissingCamera
	}
	frame := Frame{
		CameraID:   wf.CameraID,
		Detections: make([]Detection, 0, len(wf.Detections)),
	}
	if wf.Timestamp != nil {
		frame.Timestamp = *wf.Timestamp
	}
	for _, wd := range wf.Detections {
		frame.Detections = append(frame.Detections, wd.Detection())
	}
	return frame, nil
}

// Detection converts one wire detection.
func (wd WireDetection) Detection() Detection {
	if len(wd.Box) != 4 {
		nan := math.NaN()
		return NewDetection(wd.Class, wd.Score, nan, nan, nan, nan)
	}
	return NewDetection(wd.Class, wd.Score, wd.Box[0], wd.Box[1], wd.Box[2], wd.Box[3])
}
