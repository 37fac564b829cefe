package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/banshee-data/watch.report/internal/nvr/l5events"
)

// EventStore archives recorded events. It implements l5events.Sink so a
// camera's fan-out can write to it without the pipeline knowing about SQL.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Name() string { return "sqlite" }

// Publish inserts the event. Re-publishing the same event ID is a no-op.
func (s *EventStore) Publish(ctx context.Context, ev l5events.Event) error {
	r := ev.Record()
	var duration sql.NullFloat64
	if r.DurationSeconds != nil {
		duration = sql.NullFloat64{Float64: *r.DurationSeconds, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (
			event_id, camera_id, kind, object_type, track_id, confidence,
			location_x, location_y, zone_name, duration_seconds,
			ts_unix_nanos, recorded_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CameraID, string(r.Kind), r.ObjectType, r.TrackID, r.Confidence,
		r.Location.X, r.Location.Y, r.ZoneName, duration,
		r.Timestamp.UnixNano(), r.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", r.ID, err)
	}
	return nil
}

// ListEvents returns up to limit archived events for a camera, most recent
// first. A non-positive limit returns every archived event.
func (s *EventStore) ListEvents(ctx context.Context, cameraID string, limit int) ([]l5events.Record, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, camera_id, kind, object_type, track_id, confidence,
			location_x, location_y, zone_name, duration_seconds,
			ts_unix_nanos, recorded_unix_nanos
		FROM events
		WHERE camera_id = ?
		ORDER BY ts_unix_nanos DESC, recorded_unix_nanos DESC, rowid DESC
		LIMIT ?`, cameraID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []l5events.Record{}
	for rows.Next() {
		var (
			r        l5events.Record
			kind     string
			duration sql.NullFloat64
			ts, rec  int64
		)
		if err := rows.Scan(
			&r.ID, &r.CameraID, &kind, &r.ObjectType, &r.TrackID, &r.Confidence,
			&r.Location.X, &r.Location.Y, &r.ZoneName, &duration,
			&ts, &rec,
		); err != nil {
			return nil, err
		}
		r.Kind = l4signals.Kind(kind)
		if duration.Valid {
			d := duration.Float64
			r.DurationSeconds = &d
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		r.RecordedAt = time.Unix(0, rec).UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CountEvents returns the number of archived events per kind for a camera.
func (s *EventStore) CountEvents(ctx context.Context, cameraID string) (map[l4signals.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE camera_id = ? GROUP BY kind`, cameraID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[l4signals.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[l4signals.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// DeleteCameraEvents removes every archived event for a camera.
func (s *EventStore) DeleteCameraEvents(ctx context.Context, cameraID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE camera_id = ?`, cameraID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
