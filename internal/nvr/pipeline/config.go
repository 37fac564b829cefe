package pipeline

import (
	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/timeutil"
)

// Config holds the knobs injected into every camera pipeline.
type Config struct {
	Tracker           l3tracks.TrackerConfig
	Monitor           l4signals.MonitorConfig
	Recorder          l5events.RecorderConfig
	MinConfidence     float64 // Detection confidence floor; 0 disables it
	DefaultEventLimit int     // Page size when listing events without a limit
}

// ConfigFromTuning builds a pipeline Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Tracker:           l3tracks.TrackerConfigFromTuning(cfg),
		Monitor:           l4signals.MonitorConfigFromTuning(cfg),
		Recorder:          l5events.RecorderConfigFromTuning(cfg),
		MinConfidence:     cfg.GetMinConfidence(),
		DefaultEventLimit: cfg.GetDefaultEventLimit(),
	}
}

// DefaultConfig loads config/tuning.defaults.json. Panics if the file
// cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// Options carries the optional collaborators shared by all cameras.
type Options struct {
	Clock   timeutil.Clock      // defaults to the real clock
	Metrics *monitoring.Metrics // optional
	Fanout  *l5events.Fanout    // optional; receives every recorded event
}
