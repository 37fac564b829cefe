package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/nvr/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EventArchive reads events that outlive the in-memory history.
type EventArchive interface {
	ListEvents(ctx context.Context, cameraID string, limit int) ([]l5events.Record, error)
}

// ZonePersister mirrors zone writes into durable storage.
type ZonePersister interface {
	SaveZone(ctx context.Context, cameraID string, z l2zones.Zone) error
	DeleteZone(ctx context.Context, cameraID, name string) error
	DeleteCameraZones(ctx context.Context, cameraID string) error
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Archive EventArchive
	Zones   ZonePersister
	Metrics *monitoring.Metrics
}

type Server struct {
	registry   *pipeline.Registry
	dispatcher *pipeline.Dispatcher
	opts       Options
}

func NewServer(registry *pipeline.Registry, dispatcher *pipeline.Dispatcher, opts Options) *Server {
	return &Server{
		registry:   registry,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cameras", s.listCameras)
	mux.HandleFunc("DELETE /api/cameras/{camera}", s.clearCamera)
	mux.HandleFunc("GET /api/cameras/{camera}/tracks", s.listTracks)
	mux.HandleFunc("GET /api/cameras/{camera}/tracks/{id}", s.getTrack)
	mux.HandleFunc("GET /api/cameras/{camera}/tracks/chart", s.trackChart)
	mux.HandleFunc("GET /api/cameras/{camera}/tracks/plot.png", s.trackPlot)
	mux.HandleFunc("GET /api/cameras/{camera}/events", s.listEvents)
	mux.HandleFunc("GET /api/cameras/{camera}/events/archive", s.listArchivedEvents)
	mux.HandleFunc("GET /api/cameras/{camera}/zones", s.listZones)
	mux.HandleFunc("POST /api/cameras/{camera}/zones", s.addZone)
	mux.HandleFunc("DELETE /api/cameras/{camera}/zones/{name}", s.removeZone)
	mux.HandleFunc("POST /api/cameras/{camera}/frames", s.submitFrame)
	mux.HandleFunc("GET /api/statistics", s.showStatistics)
	mux.HandleFunc("GET /api/version", s.showVersion)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
	return mux
}
