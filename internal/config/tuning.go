package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Fallbacks used by the Get* accessors when a field is omitted.
const (
	defaultTrackDistanceThreshold = 100.0
	defaultMinTrackHits           = 3
	defaultMaxTrackAge            = 30
	defaultMaxTrackPathLength     = 30
	defaultLoiteringThreshold     = 30 * time.Second
	defaultAlertCooldown          = 30 * time.Second
	defaultMaxEventsPerCamera     = 100
	defaultDefaultEventLimit      = 50
)

// TuningConfig holds the per-camera pipeline knobs. The same values are
// injected into every camera pipeline at construction time.
type TuningConfig struct {
	// Track manager
	TrackDistanceThreshold *float64 `json:"track_distance_threshold,omitempty"` // pixels
	MinTrackHits           *int     `json:"min_track_hits,omitempty"`
	MaxTrackAge            *int     `json:"max_track_age,omitempty"` // frames without a match
	MaxTrackPathLength     *int     `json:"max_track_path_length,omitempty"`
	MinConfidence          *float64 `json:"min_confidence,omitempty"`

	// Zone monitor
	LoiteringThreshold        *string  `json:"loitering_threshold,omitempty"` // duration string like "30s"
	LoiteringThresholdSeconds *float64 `json:"loitering_threshold_seconds,omitempty"`

	// Event recorder
	AlertCooldown        *string  `json:"alert_cooldown,omitempty"` // duration string like "30s"
	AlertCooldownSeconds *float64 `json:"alert_cooldown_seconds,omitempty"`
	MaxEventsPerCamera   *int     `json:"max_events_per_camera,omitempty"`
	DefaultEventLimit    *int     `json:"default_event_limit,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to built-in defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/nvr/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TrackDistanceThreshold != nil && *c.TrackDistanceThreshold <= 0 {
		return fmt.Errorf("track_distance_threshold must be positive, got %f", *c.TrackDistanceThreshold)
	}
	if c.MinTrackHits != nil && *c.MinTrackHits < 1 {
		return fmt.Errorf("min_track_hits must be at least 1, got %d", *c.MinTrackHits)
	}
	if c.MaxTrackAge != nil && *c.MaxTrackAge < 0 {
		return fmt.Errorf("max_track_age must be non-negative, got %d", *c.MaxTrackAge)
	}
	if c.MaxTrackPathLength != nil && *c.MaxTrackPathLength < 1 {
		return fmt.Errorf("max_track_path_length must be at least 1, got %d", *c.MaxTrackPathLength)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}
	if c.MaxEventsPerCamera != nil && *c.MaxEventsPerCamera < 1 {
		return fmt.Errorf("max_events_per_camera must be at least 1, got %d", *c.MaxEventsPerCamera)
	}
	if c.DefaultEventLimit != nil && *c.DefaultEventLimit < 1 {
		return fmt.Errorf("default_event_limit must be at least 1, got %d", *c.DefaultEventLimit)
	}

	if c.LoiteringThreshold != nil && *c.LoiteringThreshold != "" {
		if d, err := time.ParseDuration(*c.LoiteringThreshold); err != nil {
			return fmt.Errorf("invalid loitering_threshold '%s': %w", *c.LoiteringThreshold, err)
		} else if d < 0 {
			return fmt.Errorf("loitering_threshold must be non-negative, got %s", d)
		}
	}
	if c.LoiteringThresholdSeconds != nil && *c.LoiteringThresholdSeconds < 0 {
		return fmt.Errorf("loitering_threshold_seconds must be non-negative, got %f", *c.LoiteringThresholdSeconds)
	}
	if c.AlertCooldown != nil && *c.AlertCooldown != "" {
		if d, err := time.ParseDuration(*c.AlertCooldown); err != nil {
			return fmt.Errorf("invalid alert_cooldown '%s': %w", *c.AlertCooldown, err)
		} else if d < 0 {
			return fmt.Errorf("alert_cooldown must be non-negative, got %s", d)
		}
	}
	if c.AlertCooldownSeconds != nil && *c.AlertCooldownSeconds < 0 {
		return fmt.Errorf("alert_cooldown_seconds must be non-negative, got %f", *c.AlertCooldownSeconds)
	}

	return nil
}

// durationOr resolves a duration knob that may be given as a duration
// string or as seconds. The string form wins when both are set.
func durationOr(s *string, seconds *float64, def time.Duration) time.Duration {
	if s != nil && *s != "" {
		if d, err := time.ParseDuration(*s); err == nil {
			return d
		}
		return def
	}
	if seconds != nil {
		return time.Duration(*seconds * float64(time.Second))
	}
	return def
}

// GetTrackDistanceThreshold returns the association radius in pixels.
func (c *TuningConfig) GetTrackDistanceThreshold() float64 {
	if c.TrackDistanceThreshold == nil {
		return defaultTrackDistanceThreshold
	}
	return *c.TrackDistanceThreshold
}

// GetMinTrackHits returns the hits needed before a track is confirmed.
func (c *TuningConfig) GetMinTrackHits() int {
	if c.MinTrackHits == nil {
		return defaultMinTrackHits
	}
	return *c.MinTrackHits
}

// GetMaxTrackAge returns the number of consecutive misses a track survives.
func (c *TuningConfig) GetMaxTrackAge() int {
	if c.MaxTrackAge == nil {
		return defaultMaxTrackAge
	}
	return *c.MaxTrackAge
}

func (c *TuningConfig) GetMaxTrackPathLength() int {
	if c.MaxTrackPathLength == nil {
		return defaultMaxTrackPathLength
	}
	return *c.MaxTrackPathLength
}

// GetMinConfidence returns the detection confidence floor (0 disables it).
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0
	}
	return *c.MinConfidence
}

func (c *TuningConfig) GetLoiteringThreshold() time.Duration {
	return durationOr(c.LoiteringThreshold, c.LoiteringThresholdSeconds, defaultLoiteringThreshold)
}

func (c *TuningConfig) GetAlertCooldown() time.Duration {
	return durationOr(c.AlertCooldown, c.AlertCooldownSeconds, defaultAlertCooldown)
}

// GetMaxEventsPerCamera returns the event history bound.
func (c *TuningConfig) GetMaxEventsPerCamera() int {
	if c.MaxEventsPerCamera == nil {
		return defaultMaxEventsPerCamera
	}
	return *c.MaxEventsPerCamera
}

// GetDefaultEventLimit returns the page size used when a caller lists
// events without a limit.
func (c *TuningConfig) GetDefaultEventLimit() int {
	if c.DefaultEventLimit == nil {
		return defaultDefaultEventLimit
	}
	return *c.DefaultEventLimit
}
