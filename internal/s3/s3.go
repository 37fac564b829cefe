// Package s3 archives recorded events as JSON objects in an S3-compatible
// bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/banshee-data/watch.report/internal/monitoring"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
)

// EventArchive writes each event to events/<camera>/<id>.json. It
// implements l5events.Sink.
type EventArchive struct {
	client *minio.Client
	bucket string
}

// Options configures NewEventArchive.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	// Region skips the bucket location lookup when set.
	Region string
}

func NewEventArchive(opts Options) (*EventArchive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.Secure,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &EventArchive{client: client, bucket: opts.Bucket}, nil
}

func (a *EventArchive) Name() string { return "s3" }

// EnsureBucket creates the bucket if it does not exist yet.
func (a *EventArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	monitoring.Logf("[s3] created bucket %s", a.bucket)
	return nil
}

// ObjectKey is the object name an event is stored under.
func ObjectKey(ev l5events.Event) string {
	return path.Join("events", ev.CameraID, ev.ID+".json")
}

func (a *EventArchive) Publish(ctx context.Context, ev l5events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	_, err = a.client.PutObject(ctx, a.bucket, ObjectKey(ev), bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{
			ContentType: "application/json",
			UserMetadata: map[string]string{
				"camera": ev.CameraID,
				"kind":   string(ev.Kind()),
			},
		})
	if err != nil {
		return fmt.Errorf("put %s: %w", ObjectKey(ev), err)
	}
	return nil
}
