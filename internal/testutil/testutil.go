// Package testutil provides shared test helpers and detection-frame
// fixtures.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
)

// Epoch is the fixed start time used by frame fixtures.
var Epoch = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewJSONRequest builds a test request with body encoded as JSON. A
// string or []byte body is sent verbatim.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	case []byte:
		data = b
	default:
		var err error
		if data, err = json.Marshal(b); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Person returns a 50x100 person detection centred on (cx, cy).
func Person(cx, cy float64) l1detections.Detection {
	return Object("person", 0.9, cx, cy)
}

// Object returns a 50x100 detection of the given class centred on (cx, cy).
func Object(class string, confidence, cx, cy float64) l1detections.Detection {
	return l1detections.NewDetection(class, confidence, cx-25, cy-50, cx+25, cy+50)
}

// FrameAt builds a frame for camera at ts.
func FrameAt(camera string, ts time.Time, dets ...l1detections.Detection) l1detections.Frame {
	return l1detections.Frame{CameraID: camera, Timestamp: ts, Detections: dets}
}

// Walk returns n frames, interval apart starting at Epoch, of a single
// person moving from start by step per frame.
func Walk(camera string, n int, interval time.Duration, start, step r2.Vec) []l1detections.Frame {
	frames := make([]l1detections.Frame, n)
	for i := range frames {
		p := r2.Add(start, r2.Scale(float64(i), step))
		frames[i] = FrameAt(camera, Epoch.Add(time.Duration(i)*interval), Person(p.X, p.Y))
	}
	return frames
}
