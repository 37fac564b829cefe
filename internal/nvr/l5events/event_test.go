package l5events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/banshee-data/watch.report/internal/nvr/l4signals"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONShape(t *testing.T) {
	ev := Event{
		ID:         "ev-1",
		CameraID:   "front",
		Signal:     l4signals.ZoneViolation{Who: who("trk_1"), ZoneName: "door"},
		Timestamp:  t0,
		RecordedAt: t0.Add(time.Millisecond),
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "zone_violation", raw["kind"])
	assert.Equal(t, "door", raw["zone_name"])
	assert.Equal(t, "trk_1", raw["track_id"])
	assert.Equal(t, map[string]any{"x": 200.0, "y": 200.0}, raw["location"])
	assert.NotContains(t, raw, "duration_seconds")
}

func TestLoiteringEventRoundTrip(t *testing.T) {
	ev := Event{
		ID:         "ev-2",
		CameraID:   "front",
		Signal:     l4signals.Loitering{Who: who("trk_7"), Duration: 42 * time.Second},
		Timestamp:  t0,
		RecordedAt: t0,
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_seconds":42`)
	assert.NotContains(t, string(data), "zone_name")

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(ev.Record(), back.Record()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 42*time.Second, back.Duration())
}

func TestRecordUnknownKind(t *testing.T) {
	_, err := Record{Kind: "door_opened"}.Event()
	assert.Error(t, err)
}
