package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the frame pipeline. Each
// instance owns a private registry so tests can build as many as they
// like without tripping duplicate registration.
type Metrics struct {
	FramesProcessed   *prometheus.CounterVec
	DetectionsDropped *prometheus.CounterVec
	EventsRecorded    *prometheus.CounterVec
	EventsSuppressed  *prometheus.CounterVec
	SinkErrors        *prometheus.CounterVec
	ActiveTracks      *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_frames_processed_total",
			Help: "Detection frames run through the pipeline",
		}, []string{"camera"}),
		DetectionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_detections_dropped_total",
			Help: "Malformed or low-confidence detections filtered before tracking",
		}, []string{"camera"}),
		EventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_events_recorded_total",
			Help: "Events appended to the camera history",
		}, []string{"camera", "kind"}),
		EventsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_events_suppressed_total",
			Help: "Signals discarded by the alert cooldown",
		}, []string{"camera", "kind"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_sink_errors_total",
			Help: "Failed deliveries to event sinks",
		}, []string{"sink"}),
		ActiveTracks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "watch_active_tracks",
			Help: "Tracks currently held by the camera tracker",
		}, []string{"camera"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesProcessed,
		m.DetectionsDropped,
		m.EventsRecorded,
		m.EventsSuppressed,
		m.SinkErrors,
		m.ActiveTracks,
	)
	return m
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ForgetCamera drops every series labelled with the camera so a cleared
// camera does not keep reporting stale track counts.
func (m *Metrics) ForgetCamera(cameraID string) {
	labels := prometheus.Labels{"camera": cameraID}
	m.FramesProcessed.DeletePartialMatch(labels)
	m.DetectionsDropped.DeletePartialMatch(labels)
	m.EventsRecorded.DeletePartialMatch(labels)
	m.EventsSuppressed.DeletePartialMatch(labels)
	m.ActiveTracks.DeletePartialMatch(labels)
}
