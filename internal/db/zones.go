package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l2zones"
)

// ZoneStore persists zone definitions so they survive a restart.
type ZoneStore struct {
	db *DB
}

func NewZoneStore(db *DB) *ZoneStore {
	return &ZoneStore{db: db}
}

// SaveZone upserts a camera's zone.
func (s *ZoneStore) SaveZone(ctx context.Context, cameraID string, z l2zones.Zone) error {
	spec := z.Spec()
	spec.CreatedAt = nil
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode zone %s: %w", z.Name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO zone_snapshots (camera_id, zone_name, spec_json, created_unix_nanos)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (camera_id, zone_name) DO UPDATE SET
			spec_json = excluded.spec_json,
			created_unix_nanos = excluded.created_unix_nanos`,
		cameraID, z.Name, string(data), z.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save zone %s/%s: %w", cameraID, z.Name, err)
	}
	return nil
}

// DeleteZone removes a zone. Deleting a zone that was never saved is not an error.
func (s *ZoneStore) DeleteZone(ctx context.Context, cameraID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM zone_snapshots WHERE camera_id = ? AND zone_name = ?`, cameraID, name)
	return err
}

// DeleteCameraZones removes every zone saved for a camera.
func (s *ZoneStore) DeleteCameraZones(ctx context.Context, cameraID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM zone_snapshots WHERE camera_id = ?`, cameraID)
	return err
}

// LoadZones returns every saved zone keyed by camera, in creation order.
func (s *ZoneStore) LoadZones(ctx context.Context) (map[string][]l2zones.Spec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT camera_id, spec_json, created_unix_nanos FROM zone_snapshots
		ORDER BY camera_id, created_unix_nanos, zone_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]l2zones.Spec)
	for rows.Next() {
		var cameraID, data string
		var created int64
		if err := rows.Scan(&cameraID, &data, &created); err != nil {
			return nil, err
		}
		var spec l2zones.Spec
		if err := json.Unmarshal([]byte(data), &spec); err != nil {
			return nil, fmt.Errorf("decode zone for camera %s: %w", cameraID, err)
		}
		ts := time.Unix(0, created).UTC()
		spec.CreatedAt = &ts
		out[cameraID] = append(out[cameraID], spec)
	}
	return out, rows.Err()
}
