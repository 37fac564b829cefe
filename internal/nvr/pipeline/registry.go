package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/samber/lo"
)

var ErrCameraNotFound = errors.New("camera not found")

// Registry owns the camera contexts. Cameras are created on their first
// frame or zone write and live until Remove.
type Registry struct {
	cfg  Config
	opts Options

	mu      sync.RWMutex
	cameras map[string]*Camera
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, opts Options) *Registry {
	return &Registry{
		cfg:     cfg,
		opts:    opts,
		cameras: make(map[string]*Camera),
	}
}

// Config returns the pipeline config given to new cameras.
func (r *Registry) Config() Config { return r.cfg }

// Ensure returns the camera, creating it if needed.
func (r *Registry) Ensure(id string) *Camera {
	r.mu.RLock()
	cam, ok := r.cameras[id]
	r.mu.RUnlock()
	if ok {
		return cam
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cam, ok := r.cameras[id]; ok {
		return cam
	}
	cam = NewCamera(id, r.cfg, r.opts)
	r.cameras[id] = cam
	monitoring.Logf("[pipeline] camera %s registered", id)
	return cam
}

// Get returns an existing camera.
func (r *Registry) Get(id string) (*Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCameraNotFound, id)
	}
	return cam, nil
}

// Remove discards a camera's tracks, zones, cooldowns and history. Run it
// through Dispatcher.Do when frames may be in flight for the camera.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	cam, ok := r.cameras[id]
	delete(r.cameras, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrCameraNotFound, id)
	}
	// Anyone still holding the old context sees it empty.
	cam.reset()
	if r.opts.Metrics != nil {
		r.opts.Metrics.ForgetCamera(id)
	}
	monitoring.Logf("[pipeline] camera %s cleared", id)
	return nil
}

// Cameras returns the registered camera ids, sorted.
func (r *Registry) Cameras() []string {
	r.mu.RLock()
	ids := lo.Keys(r.cameras)
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Statistics is the service-wide summary.
type Statistics struct {
	TotalCameras int                    `json:"total_cameras"`
	ActiveTracks int                    `json:"active_tracks"`
	TotalZones   int                    `json:"total_zones"`
	TotalEvents  int                    `json:"total_events"`
	Cameras      map[string]CameraStats `json:"cameras"`
}

// Statistics summarises every camera.
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	cams := lo.Values(r.cameras)
	r.mu.RUnlock()

	per := make(map[string]CameraStats, len(cams))
	for _, cam := range cams {
		per[cam.ID] = cam.Stats()
	}
	stats := lo.Values(per)
	return Statistics{
		TotalCameras: len(per),
		ActiveTracks: lo.SumBy(stats, func(s CameraStats) int { return s.ActiveTracks }),
		TotalZones:   lo.SumBy(stats, func(s CameraStats) int { return s.Zones }),
		TotalEvents:  lo.SumBy(stats, func(s CameraStats) int { return s.RecentEvents }),
		Cameras:      per,
	}
}
