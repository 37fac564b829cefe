package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
)

// DefaultListen is the HTTP listen address used when none is configured.
const DefaultListen = ":8080"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Listen string `yaml:"listen" env:"WATCH_LISTEN"`
}

// DatabaseConfig configures the SQLite event archive. An empty Path
// disables the archive.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"WATCH_DB_PATH"`
	AdminRoutes bool   `yaml:"admin_routes" env:"WATCH_DB_ADMIN_ROUTES"`
}

func (c DatabaseConfig) Enabled() bool { return c.Path != "" }

// KafkaConfig configures detection ingest and event publication. With no
// brokers Kafka is not used at all.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	GroupID         string   `yaml:"group_id" env:"KAFKA_GROUP_ID"`
	DetectionsTopic string   `yaml:"detections_topic" env:"KAFKA_DETECTIONS_TOPIC"`
	EventsTopic     string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// MinioConfig configures the S3 event archive.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
	Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
}

func (c MinioConfig) Enabled() bool { return c.Endpoint != "" }

// WebhookConfig configures alert notifications. Kinds limits delivery to
// the listed event kinds; empty means all.
type WebhookConfig struct {
	URL   string   `yaml:"url" env:"WATCH_WEBHOOK_URL"`
	Kinds []string `yaml:"kinds" env:"WATCH_WEBHOOK_KINDS" envSeparator:","`
}

func (c WebhookConfig) Enabled() bool { return c.URL != "" }

// event kinds accepted in webhook.kinds
var knownEventKinds = map[string]bool{
	"object_detected":    true,
	"zone_violation":     true,
	"loitering_detected": true,
}

// CameraConfig bootstraps a camera with zones at startup.
type CameraConfig struct {
	ID    string         `yaml:"id"`
	Zones []l2zones.Spec `yaml:"zones"`
}

// ServiceConfig is the process-level configuration of cmd/watch. It is
// read from YAML, then environment variables override individual fields.
type ServiceConfig struct {
	HTTP       HTTPConfig     `yaml:"http"`
	Database   DatabaseConfig `yaml:"database"`
	TuningPath string         `yaml:"tuning_path" env:"WATCH_TUNING_PATH"`
	Kafka      KafkaConfig    `yaml:"kafka"`
	Minio      MinioConfig    `yaml:"minio"`
	Webhook    WebhookConfig  `yaml:"webhook"`
	Cameras    []CameraConfig `yaml:"cameras"`
}

// DefaultServiceConfig returns the configuration used when no file is given.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		HTTP: HTTPConfig{Listen: DefaultListen},
		Kafka: KafkaConfig{
			GroupID:         "watch",
			DetectionsTopic: "detections",
			EventsTopic:     "events",
		},
		Minio: MinioConfig{Bucket: "events"},
	}
}

// LoadServiceConfig reads the YAML file at path (skipped when path is
// empty), applies environment overrides and validates the result.
func LoadServiceConfig(path string) (*ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read service config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse service config YAML: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks camera bootstrap entries and collaborator settings.
func (c *ServiceConfig) Validate() error {
	if c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty")
	}
	if c.Kafka.Enabled() && c.Kafka.DetectionsTopic == "" && c.Kafka.EventsTopic == "" {
		return errors.New("kafka needs at least one of detections_topic or events_topic")
	}
	if c.Minio.Enabled() && c.Minio.Bucket == "" {
		return errors.New("minio.bucket must not be empty")
	}
	for _, k := range c.Webhook.Kinds {
		if !knownEventKinds[k] {
			return fmt.Errorf("webhook.kinds: unknown event kind %q", k)
		}
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d]: id must not be empty", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("cameras[%d]: duplicate camera id %q", i, cam.ID)
		}
		seen[cam.ID] = true

		names := make(map[string]bool, len(cam.Zones))
		for j, spec := range cam.Zones {
			if _, err := spec.Build(); err != nil {
				return fmt.Errorf("cameras[%d].zones[%d]: %w", i, j, err)
			}
			if names[spec.Name] {
				return fmt.Errorf("cameras[%d].zones[%d]: %w: %s", i, j, l2zones.ErrDuplicateZone, spec.Name)
			}
			names[spec.Name] = true
		}
	}
	return nil
}

// LoadTuning loads the tuning file named by TuningPath, or returns an empty
// config (all defaults) when none is set.
func (c *ServiceConfig) LoadTuning() (*TuningConfig, error) {
	if c.TuningPath == "" {
		return EmptyTuningConfig(), nil
	}
	return LoadTuningConfig(c.TuningPath)
}
