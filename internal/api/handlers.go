package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/watch.report/internal/httputil"
	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/nvr/pipeline"
	"github.com/banshee-data/watch.report/internal/nvr/visualiser"
	"github.com/banshee-data/watch.report/internal/version"
)

// request bodies larger than this are rejected
const maxBodyBytes = 1 << 20

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, l2zones.ErrDegenerateGeometry),
		errors.Is(err, l2zones.ErrUnknownKind),
		errors.Is(err, l2zones.ErrMissingName),
		errors.Is(err, l1detections.ErrMissingCamera):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, l2zones.ErrDuplicateZone):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, l2zones.ErrZoneNotFound),
		errors.Is(err, l3tracks.ErrTrackNotFound),
		errors.Is(err, pipeline.ErrCameraNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, pipeline.ErrDispatcherClosed):
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) camera(w http.ResponseWriter, r *http.Request) (*pipeline.Camera, bool) {
	cam, err := s.registry.Get(r.PathValue("camera"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return cam, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string][]string{"cameras": s.registry.Cameras()})
}

// clearCamera drops every piece of state held for the camera. It runs on
// the camera's worker so frames and zone writes already queued finish
// first.
func (s *Server) clearCamera(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("camera")
	if _, err := s.registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	err := s.dispatcher.Do(r.Context(), id, func() error {
		if err := s.registry.Remove(id); err != nil {
			return err
		}
		if s.opts.Zones != nil {
			// background context: the delete must not be abandoned with the request
			if err := s.opts.Zones.DeleteCameraZones(context.Background(), id); err != nil {
				monitoring.Logf("[api] %s: failed to delete saved zones: %v", id, err)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	tracks := cam.Tracks()
	if r.URL.Query().Get("confirmed") == "true" {
		tracks = lo.Filter(tracks, func(t l3tracks.Track, _ int) bool { return t.Confirmed })
	}
	httputil.WriteJSONOK(w, lo.Map(tracks, func(t l3tracks.Track, _ int) trackView { return newTrackView(t) }))
}

// getTrack returns one track along with the zones its centre is in.
func (s *Server) getTrack(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	t, err := cam.Track(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	zones := lo.Map(cam.ZonesAt(t.Center), func(z l2zones.Zone, _ int) string { return z.Name })
	httputil.WriteJSONOK(w, trackDetail{trackView: newTrackView(t), Zones: zones})
}

func (s *Server) scene(cam *pipeline.Camera) visualiser.Scene {
	return visualiser.Scene{CameraID: cam.ID, Tracks: cam.Tracks(), Zones: cam.ListZones()}
}

func (s *Server) trackChart(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := visualiser.RenderTrajectoryChart(&buf, s.scene(cam)); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) trackPlot(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	width, err := inches(r, "width")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	height, err := inches(r, "height")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := visualiser.PlotTrajectories(&buf, s.scene(cam), width, height); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}

// inches reads an optional plot dimension in inches (1 to 40).
func inches(r *http.Request, key string) (vg.Length, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 1 || v > 40 {
		return 0, fmt.Errorf("invalid '%s' parameter %q", key, raw)
	}
	return vg.Length(v) * vg.Inch, nil
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryLimit(r, 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, records(cam.Events(limit)))
}

func (s *Server) listArchivedEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		httputil.NotFound(w, "event archive is not configured")
		return
	}
	limit, err := httputil.QueryLimit(r, s.registry.Config().DefaultEventLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	recs, err := s.opts.Archive.ListEvents(r.Context(), r.PathValue("camera"), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, cam.ListZones())
}

// addZone creates the camera on first use, like a first frame would. The
// write is serialised with the camera's frames and with clearCamera.
func (s *Server) addZone(w http.ResponseWriter, r *http.Request) {
	var spec l2zones.Spec
	if err := decodeBody(r, &spec); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	spec.CreatedAt = nil

	id := r.PathValue("camera")
	var zone l2zones.Zone
	err := s.dispatcher.Do(r.Context(), id, func() error {
		var err error
		if zone, err = s.registry.Ensure(id).AddZone(spec); err != nil {
			return err
		}
		if s.opts.Zones != nil {
			if err := s.opts.Zones.SaveZone(context.Background(), id, zone); err != nil {
				monitoring.Logf("[api] %s: failed to save zone %q: %v", id, zone.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, zone)
}

func (s *Server) removeZone(w http.ResponseWriter, r *http.Request) {
	cam, ok := s.camera(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	err := s.dispatcher.Do(r.Context(), cam.ID, func() error {
		cur, err := s.registry.Get(cam.ID)
		if err != nil {
			return err
		}
		if err := cur.RemoveZone(name); err != nil {
			return err
		}
		if s.opts.Zones != nil {
			if err := s.opts.Zones.DeleteZone(context.Background(), cam.ID, name); err != nil {
				monitoring.Logf("[api] %s: failed to delete saved zone %q: %v", cam.ID, name, err)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// frameResponse is what a synchronous frame submission returns.
type frameResponse struct {
	CameraID     string            `json:"camera_id"`
	Timestamp    time.Time         `json:"timestamp"`
	Accepted     int               `json:"accepted_detections"`
	Rejected     int               `json:"rejected_detections"`
	ActiveTracks int               `json:"active_tracks"`
	Events       []l5events.Record `json:"events"`
}

func (s *Server) submitFrame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("camera")
	var wf l1detections.WireFrame
	if err := decodeBody(r, &wf); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if wf.CameraID == "" {
		wf.CameraID = id
	} else if wf.CameraID != id {
		httputil.BadRequest(w, fmt.Sprintf("camera_id %q does not match path camera %q", wf.CameraID, id))
		return
	}
	frame, err := wf.Frame()
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.dispatcher.Submit(r.Context(), frame)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, frameResponse{
		CameraID:     res.CameraID,
		Timestamp:    res.Timestamp,
		Accepted:     res.Accepted,
		Rejected:     len(res.Rejected),
		ActiveTracks: s.registry.Ensure(id).Tracker.Len(),
		Events:       records(res.Events),
	})
}

func (s *Server) showStatistics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.registry.Statistics())
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Get())
}
