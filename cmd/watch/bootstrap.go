package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/watch.report/internal/config"
	"github.com/banshee-data/watch.report/internal/db"
	"github.com/banshee-data/watch.report/internal/httputil"
	"github.com/banshee-data/watch.report/internal/kafka"
	"github.com/banshee-data/watch.report/internal/nvr/l1detections"
	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
	"github.com/banshee-data/watch.report/internal/nvr/pipeline"
	"github.com/banshee-data/watch.report/internal/s3"
	"github.com/banshee-data/watch.report/internal/webhook"
)

// closer is a named resource released at shutdown.
type closer struct {
	name string
	io.Closer
}

// buildSinks creates one event sink per enabled backend.
func buildSinks(ctx context.Context, cfg *config.ServiceConfig, database *db.DB) ([]l5events.Sink, []closer, error) {
	var sinks []l5events.Sink
	var closers []closer

	if database != nil {
		sinks = append(sinks, db.NewEventStore(database))
	}

	if cfg.Kafka.Enabled() {
		pub, err := kafka.NewEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		sinks = append(sinks, pub)
		closers = append(closers, closer{name: "kafka publisher", Closer: pub})
	}

	if cfg.Minio.Enabled() {
		archive, err := s3.NewEventArchive(s3.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Secure:    cfg.Minio.Secure,
		})
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		sinks = append(sinks, archive)
	}

	if cfg.Webhook.Enabled() {
		kinds := make([]l4signals.Kind, len(cfg.Webhook.Kinds))
		for i, k := range cfg.Webhook.Kinds {
			kinds[i] = l4signals.Kind(k)
		}
		sinks = append(sinks, webhook.NewNotifier(cfg.Webhook.URL, httputil.NewStandardClient(nil), kinds...))
	}

	return sinks, closers, nil
}

// bootstrapZones installs the zones named in the service config, then any
// zones saved through the API. A saved zone replaces a configured zone of
// the same name.
func bootstrapZones(registry *pipeline.Registry, cameras []config.CameraConfig, saved map[string][]l2zones.Spec) error {
	for _, cc := range cameras {
		cam := registry.Ensure(cc.ID)
		for _, spec := range cc.Zones {
			if _, err := cam.AddZone(spec); err != nil {
				return fmt.Errorf("camera %s: %w", cc.ID, err)
			}
		}
	}
	for id, specs := range saved {
		cam := registry.Ensure(id)
		for _, spec := range specs {
			if err := cam.RemoveZone(spec.Name); err != nil && !errors.Is(err, l2zones.ErrZoneNotFound) {
				return fmt.Errorf("camera %s: %w", id, err)
			}
			if _, err := cam.AddZone(spec); err != nil {
				return fmt.Errorf("camera %s: saved zone %q: %w", id, spec.Name, err)
			}
		}
	}
	return nil
}

// replayFile feeds a JSONL fixture file through the dispatcher.
func replayFile(ctx context.Context, path string, d *pipeline.Dispatcher) (int, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return 0, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	defer f.Close()
	return replayFrames(ctx, f, d)
}

// replayFrames submits one frame per non-blank line, in order, waiting for
// each to be processed so timestamps are honoured. Undecodable lines are
// logged and skipped.
func replayFrames(ctx context.Context, r io.Reader, d *pipeline.Dispatcher) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n, line := 0, 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		frame, err := l1detections.DecodeFrame(data)
		if err != nil {
			log.Printf("fixtures line %d: %v", line, err)
			continue
		}
		if _, err := d.Submit(ctx, frame); err != nil {
			return n, err
		}
		n++
	}
	return n, sc.Err()
}
