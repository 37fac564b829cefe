package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
)

const sampleServiceYAML = `
http:
  listen: ":9090"
database:
  path: /var/lib/watch/events.db
  admin_routes: true
tuning_path: config/tuning.defaults.json
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  group_id: watch-edge
  detections_topic: detections
  events_topic: nvr-events
minio:
  endpoint: minio:9000
  access_key: watch
  secret_key: secret
  bucket: nvr-events
webhook:
  url: http://alerts.local/hook
  kinds: [zone_violation, loitering_detected]
cameras:
  - id: front
    zones:
      - name: door
        type: rectangle
        coordinates: [100, 100, 400, 300]
        restricted: true
      - name: lawn
        type: polygon
        coordinates: [[0, 0], [50, 0], [25, 40]]
`

func writeServiceConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadServiceConfig(t *testing.T) {
	cfg, err := LoadServiceConfig(writeServiceConfig(t, sampleServiceYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Listen)
	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.Database.AdminRoutes)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "nvr-events", cfg.Kafka.EventsTopic)
	assert.True(t, cfg.Minio.Enabled())
	assert.False(t, cfg.Minio.Secure)
	assert.True(t, cfg.Webhook.Enabled())
	assert.Equal(t, []string{"zone_violation", "loitering_detected"}, cfg.Webhook.Kinds)

	require.Len(t, cfg.Cameras, 1)
	require.Len(t, cfg.Cameras[0].Zones, 2)

	door, err := cfg.Cameras[0].Zones[0].Build()
	require.NoError(t, err)
	assert.Equal(t, l2zones.KindRectangle, door.Kind)
	assert.True(t, door.Restricted)

	lawn, err := cfg.Cameras[0].Zones[1].Build()
	require.NoError(t, err)
	assert.Equal(t, l2zones.KindPolygon, lawn.Kind)
	assert.Len(t, lawn.Vertices(), 3)
}

func TestLoadServiceConfigDefaults(t *testing.T) {
	cfg, err := LoadServiceConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.HTTP.Listen)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Minio.Enabled())

	tuning, err := cfg.LoadTuning()
	require.NoError(t, err)
	assert.Equal(t, 100, tuning.GetMaxEventsPerCamera())
}

func TestLoadServiceConfigEnvOverrides(t *testing.T) {
	t.Setenv("WATCH_LISTEN", ":7070")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092,c:9092")
	t.Setenv("MINIO_SECURE", "true")

	cfg, err := LoadServiceConfig(writeServiceConfig(t, sampleServiceYAML))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Listen)
	assert.Equal(t, []string{"a:9092", "b:9092", "c:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Minio.Secure)
	// untouched by env
	assert.Equal(t, "watch-edge", cfg.Kafka.GroupID)
}

func TestLoadServiceConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "http: [::"},
		{"missing camera id", "cameras:\n  - zones: []\n"},
		{"duplicate camera", "cameras:\n  - id: a\n  - id: a\n"},
		{"degenerate zone", "cameras:\n  - id: a\n    zones:\n      - name: z\n        type: rectangle\n        coordinates: [10, 10, 5, 5]\n"},
		{"unknown zone type", "cameras:\n  - id: a\n    zones:\n      - name: z\n        type: circle\n        coordinates: [1, 2, 3, 4]\n"},
		{"duplicate zone", "cameras:\n  - id: a\n    zones:\n      - {name: z, type: rectangle, coordinates: [0, 0, 1, 1]}\n      - {name: z, type: rectangle, coordinates: [0, 0, 2, 2]}\n"},
		{"unknown webhook kind", "webhook:\n  url: http://x\n  kinds: [line_crossing]\n"},
		{"minio without bucket", "minio:\n  endpoint: minio:9000\n  bucket: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadServiceConfig(writeServiceConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadServiceConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
