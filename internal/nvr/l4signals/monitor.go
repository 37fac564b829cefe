package l4signals

import (
	"time"

	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l3tracks"
)

// MonitorConfig holds the zone monitor thresholds.
type MonitorConfig struct {
	LoiteringThreshold time.Duration
}

// MonitorConfigFromTuning builds a MonitorConfig from a loaded TuningConfig.
func MonitorConfigFromTuning(cfg *config.TuningConfig) MonitorConfig {
	return MonitorConfig{LoiteringThreshold: cfg.GetLoiteringThreshold()}
}

// Monitor evaluates zone containment and dwell time. It is stateless
// beyond its config.
type Monitor struct {
	Config MonitorConfig
}

// NewMonitor creates a zone monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	return &Monitor{Config: cfg}
}

// Evaluate returns the zone-violation and loitering signals for this
// frame. Unconfirmed tracks are ignored. For each track, violations come
// first in zone order, then loitering.
func (m *Monitor) Evaluate(tracks []l3tracks.Track, zones []l2zones.Zone, now time.Time) []Signal {
	var out []Signal
	for _, t := range tracks {
		if !t.Confirmed {
			continue
		}
		who := subjectOf(t)
		for _, z := range zones {
			if z.Restricted && z.Contains(t.Center) {
				out = append(out, ZoneViolation{Who: who, ZoneName: z.Name})
			}
		}
		if dwell := t.Dwell(now); dwell >= m.Config.LoiteringThreshold {
			out = append(out, Loitering{Who: who, Duration: dwell})
		}
	}
	return out
}
