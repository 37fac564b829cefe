package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/nvr/pipeline"
	"github.com/banshee-data/watch.report/internal/testutil"
	"github.com/banshee-data/watch.report/internal/timeutil"
	"github.com/banshee-data/watch.report/internal/version"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type fakeZoneStore struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	cleared []string
}

func (f *fakeZoneStore) SaveZone(_ context.Context, cam string, z l2zones.Zone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, cam+"/"+z.Name)
	return nil
}

func (f *fakeZoneStore) DeleteZone(_ context.Context, cam, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cam+"/"+name)
	return nil
}

func (f *fakeZoneStore) DeleteCameraZones(_ context.Context, cam string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, cam)
	return nil
}

type fakeArchive struct {
	records   []l5events.Record
	err       error
	lastLimit int
}

func (f *fakeArchive) ListEvents(_ context.Context, cam string, limit int) ([]l5events.Record, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	registry *pipeline.Registry
	zones    *fakeZoneStore
	archive  *fakeArchive
	metrics  *monitoring.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })

	metrics := monitoring.NewMetrics()
	registry := pipeline.NewRegistry(pipeline.DefaultConfig(), pipeline.Options{
		Clock:   timeutil.NewMockClock(testutil.Epoch),
		Metrics: metrics,
	})
	dispatcher := pipeline.NewDispatcher(registry, 8)
	t.Cleanup(dispatcher.Close)

	env := &testEnv{
		registry: registry,
		zones:    &fakeZoneStore{},
		archive:  &fakeArchive{},
		metrics:  metrics,
	}
	env.server = NewServer(registry, dispatcher, Options{Archive: env.archive, Zones: env.zones, Metrics: metrics})
	env.handler = env.server.ServeMux()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, testutil.NewJSONRequest(t, method, path, body))
	return w
}

func (e *testEnv) metricsText(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodGet, "/metrics", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	return w.Body.String()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

const doorZone = `{"name":"door","type":"rectangle","coordinates":[100,100,400,300],"restricted":true}`

func frameJSON(camera string, ts time.Time, cx, cy float64) string {
	return fmt.Sprintf(`{"camera_id":%q,"timestamp":%q,"detections":[{"class":"person","score":0.92,"box":[%g,%g,%g,%g]}]}`,
		camera, ts.Format(time.RFC3339Nano), cx-25, cy-50, cx+25, cy+50)
}

// ---------------------------------------------------------------------------
// Zones
// ---------------------------------------------------------------------------

func TestZoneLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone)
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)
	created := decode[l2zones.Spec](t, w)
	assert.Equal(t, "door", created.Name)
	require.NotNil(t, created.CreatedAt)
	assert.True(t, created.CreatedAt.Equal(testutil.Epoch))

	w = env.do(t, http.MethodPost, "/api/cameras/front/zones",
		`{"name":"lawn","type":"polygon","coordinates":[[0,0],[50,0],[25,40]]}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusCreated)

	w = env.do(t, http.MethodGet, "/api/cameras/front/zones", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	got := decode[[]l2zones.Spec](t, w)
	want := []l2zones.Spec{
		{Name: "door", Type: l2zones.KindRectangle, Coordinates: l2zones.Coordinates{Flat: []float64{100, 100, 400, 300}}, Restricted: true},
		{Name: "lawn", Type: l2zones.KindPolygon, Coordinates: l2zones.Coordinates{Points: [][2]float64{{0, 0}, {50, 0}, {25, 40}}}},
	}
	if diff := cmp.Diff(want, got, cmp.FilterPath(func(p cmp.Path) bool {
		return p.Last().String() == ".CreatedAt"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}

	w = env.do(t, http.MethodDelete, "/api/cameras/front/zones/lawn", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)
	w = env.do(t, http.MethodDelete, "/api/cameras/front/zones/lawn", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)

	assert.Equal(t, []string{"front/door", "front/lawn"}, env.zones.saved)
	assert.Equal(t, []string{"front/lawn"}, env.zones.deleted)
}

func TestZoneErrors(t *testing.T) {
	env := newTestEnv(t)
	testutil.AssertStatusCode(t, env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone).Code, http.StatusCreated)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"duplicate", doorZone, http.StatusConflict},
		{"degenerate rectangle", `{"name":"bad","type":"rectangle","coordinates":[400,300,100,100]}`, http.StatusBadRequest},
		{"two point polygon", `{"name":"bad","type":"polygon","coordinates":[[0,0],[1,1]]}`, http.StatusBadRequest},
		{"unknown type", `{"name":"bad","type":"circle","coordinates":[1,2,3,4]}`, http.StatusBadRequest},
		{"missing name", `{"type":"rectangle","coordinates":[1,2,3,4]}`, http.StatusBadRequest},
		{"malformed json", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/cameras/front/zones", tt.body)
			testutil.AssertStatusCode(t, w.Code, tt.want)
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}

	w := env.do(t, http.MethodDelete, "/api/cameras/ghost/zones/door", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// Frames, tracks and events
// ---------------------------------------------------------------------------

func TestFramesProduceTracksAndEvents(t *testing.T) {
	env := newTestEnv(t)
	testutil.AssertStatusCode(t, env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone).Code, http.StatusCreated)

	var last frameResponse
	for i := 0; i < 3; i++ {
		ts := testutil.Epoch.Add(time.Duration(i) * time.Second)
		w := env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("front", ts, 125, 150))
		testutil.AssertStatusCode(t, w.Code, http.StatusOK)
		last = decode[frameResponse](t, w)
		if i < 2 {
			assert.Empty(t, last.Events, "frame %d", i)
		}
	}
	assert.Equal(t, 1, last.Accepted)
	assert.Equal(t, 1, last.ActiveTracks)
	kinds := []l4signals.Kind{last.Events[0].Kind, last.Events[1].Kind}
	assert.ElementsMatch(t, []l4signals.Kind{l4signals.KindObjectDetected, l4signals.KindZoneViolation}, kinds)

	w := env.do(t, http.MethodGet, "/api/cameras/front/tracks", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	tracks := decode[[]trackView](t, w)
	require.Len(t, tracks, 1)
	assert.Equal(t, "trk_00000001", tracks[0].TrackID)
	assert.True(t, tracks[0].Confirmed)
	assert.Len(t, tracks[0].Path, 3)
	assert.Equal(t, l5events.Point{X: 125, Y: 150}, tracks[0].Center)

	w = env.do(t, http.MethodGet, "/api/cameras/front/events", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	events := decode[[]l5events.Record](t, w)
	require.Len(t, events, 2)
	assert.Equal(t, "door", events[0].ZoneName, "most recent first")

	w = env.do(t, http.MethodGet, "/api/cameras/front/events?limit=1", nil)
	require.Len(t, decode[[]l5events.Record](t, w), 1)

	w = env.do(t, http.MethodGet, "/api/cameras/front/events?limit=abc", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestGetTrack(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone)
	env.do(t, http.MethodPost, "/api/cameras/front/zones",
		`{"name":"porch","type":"rectangle","coordinates":[0,0,130,160]}`)
	env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("front", testutil.Epoch, 125, 150))

	w := env.do(t, http.MethodGet, "/api/cameras/front/tracks/trk_00000001", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	got := decode[trackDetail](t, w)
	assert.Equal(t, "trk_00000001", got.TrackID)
	assert.Equal(t, "person", got.ObjectType)
	assert.False(t, got.Confirmed)
	assert.Equal(t, []string{"door", "porch"}, got.Zones)

	w = env.do(t, http.MethodGet, "/api/cameras/front/tracks/trk_00000099", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "track not found")

	w = env.do(t, http.MethodGet, "/api/cameras/ghost/tracks/trk_00000001", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestClearCameraThenFrameStartsFresh(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("front", testutil.Epoch, 125, 150))
	cam, err := env.registry.Get("front")
	require.NoError(t, err)

	testutil.AssertStatusCode(t, env.do(t, http.MethodDelete, "/api/cameras/front", nil).Code, http.StatusNoContent)
	assert.Empty(t, cam.Tracks(), "the removed context is emptied")

	w := env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("front", testutil.Epoch.Add(time.Second), 125, 150))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	tracks := decode[[]trackView](t, env.do(t, http.MethodGet, "/api/cameras/front/tracks", nil))
	require.Len(t, tracks, 1)
	assert.Equal(t, 1, tracks[0].Hits)
	assert.Equal(t, "trk_00000001", tracks[0].TrackID, "a fresh camera has a fresh tracker")
	assert.Contains(t, env.metricsText(t), `watch_frames_processed_total{camera="front"} 1`)
}

func TestFrameValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("back", testutil.Epoch, 10, 10))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	w = env.do(t, http.MethodPost, "/api/cameras/front/frames", `{"detections":`)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)

	// camera_id may be omitted; malformed boxes are dropped, not fatal
	w = env.do(t, http.MethodPost, "/api/cameras/front/frames",
		`{"detections":[{"class":"person","score":0.9,"box":[1,2,3]},{"class":"car","score":0.8,"box":[0,0,10,10]}]}`)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	res := decode[frameResponse](t, w)
	assert.Equal(t, "front", res.CameraID)
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 1, res.Rejected)
}

func TestUnknownCameraReads(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/api/cameras/ghost/tracks",
		"/api/cameras/ghost/events",
		"/api/cameras/ghost/zones",
		"/api/cameras/ghost/tracks/chart",
		"/api/cameras/ghost/tracks/plot.png",
	} {
		w := env.do(t, http.MethodGet, path, nil)
		testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
	}
	testutil.AssertStatusCode(t, env.do(t, http.MethodDelete, "/api/cameras/ghost", nil).Code, http.StatusNotFound)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPut, "/api/cameras/front/zones", doorZone)
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

// ---------------------------------------------------------------------------
// Camera-level operations
// ---------------------------------------------------------------------------

func TestClearCameraAndStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone)
	env.do(t, http.MethodPost, "/api/cameras/back/frames", frameJSON("back", testutil.Epoch, 50, 50))

	w := env.do(t, http.MethodGet, "/api/cameras", nil)
	assert.Equal(t, map[string][]string{"cameras": {"back", "front"}}, decode[map[string][]string](t, w))

	stats := decode[pipeline.Statistics](t, env.do(t, http.MethodGet, "/api/statistics", nil))
	assert.Equal(t, 2, stats.TotalCameras)
	assert.Equal(t, 1, stats.ActiveTracks)
	assert.Equal(t, 1, stats.TotalZones)
	assert.Equal(t, 1, stats.Cameras["front"].Zones)

	w = env.do(t, http.MethodDelete, "/api/cameras/front", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNoContent)
	assert.Equal(t, []string{"front"}, env.zones.cleared)

	testutil.AssertStatusCode(t, env.do(t, http.MethodGet, "/api/cameras/front/zones", nil).Code, http.StatusNotFound)
	stats = decode[pipeline.Statistics](t, env.do(t, http.MethodGet, "/api/statistics", nil))
	assert.Equal(t, 1, stats.TotalCameras)
}

func TestTrajectoryRendering(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cameras/front/zones", doorZone)
	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/api/cameras/front/frames",
			frameJSON("front", testutil.Epoch.Add(time.Duration(i)*time.Second), 125+float64(10*i), 150))
	}

	w := env.do(t, http.MethodGet, "/api/cameras/front/tracks/chart", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "trk_00000001")

	w = env.do(t, http.MethodGet, "/api/cameras/front/tracks/plot.png?width=4&height=3", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = env.do(t, http.MethodGet, "/api/cameras/front/tracks/plot.png?width=0", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestArchivedEvents(t *testing.T) {
	env := newTestEnv(t)
	env.archive.records = []l5events.Record{{ID: "old", CameraID: "front", Kind: l4signals.KindObjectDetected}}

	w := env.do(t, http.MethodGet, "/api/cameras/front/events/archive", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	got := decode[[]l5events.Record](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].ID)
	assert.Equal(t, 50, env.archive.lastLimit)

	env.do(t, http.MethodGet, "/api/cameras/front/events/archive?limit=7", nil)
	assert.Equal(t, 7, env.archive.lastLimit)

	env.archive.err = errors.New("disk on fire")
	w = env.do(t, http.MethodGet, "/api/cameras/front/events/archive", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusInternalServerError)

	env.server.opts.Archive = nil
	w = env.do(t, http.MethodGet, "/api/cameras/front/events/archive", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestVersionAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/version", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, version.Get(), decode[version.Info](t, w))

	env.do(t, http.MethodPost, "/api/cameras/front/frames", frameJSON("front", testutil.Epoch, 50, 50))
	w = env.do(t, http.MethodGet, "/metrics", nil)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Contains(t, w.Body.String(), `watch_frames_processed_total{camera="front"} 1`)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cameras?x=1", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	out := buf.String()
	assert.Contains(t, out, "418")
	assert.Contains(t, out, "GET")
	assert.True(t, strings.Contains(out, "/api/cameras?x=1"))
}
