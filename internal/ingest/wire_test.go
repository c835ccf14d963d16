// v1
// internal/ingest/wire_test.go
package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadingWireToleratesWireShapes(t *testing.T) {
	ts := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		payload string
	}{
		{"rfc3339", `{"device_id": "d1", "power_watts": 42.5, "observed_at": "2024-07-10T12:00:00Z"}`},
		{"unix millis", `{"device_id": "d1", "power_watts": 42.5, "observed_at": 1720612800000}`},
		{"unix seconds", `{"device_id": "d1", "power_watts": 42.5, "observed_at": 1720612800}`},
		{"numeric strings", `{"device_id": "d1", "power_watts": "42.5", "observed_at": "1720612800000"}`},
		{"numeric id", `{"device_id": 1, "power_watts": 42.5, "observed_at": "2024-07-10T12:00:00Z"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rw ReadingWire
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &rw))
			r, err := rw.ToReading()
			require.NoError(t, err)
			require.Equal(t, 42.5, r.PowerWatts)
			require.True(t, r.ObservedAt.Equal(ts), "got %s", r.ObservedAt)
		})
	}
}

func TestReadingWireRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"missing device", `{"power_watts": 1, "observed_at": "2024-07-10T12:00:00Z"}`},
		{"empty device", `{"device_id": "", "power_watts": 1, "observed_at": "2024-07-10T12:00:00Z"}`},
		{"missing power", `{"device_id": "d1", "observed_at": "2024-07-10T12:00:00Z"}`},
		{"bad power", `{"device_id": "d1", "power_watts": "lots", "observed_at": "2024-07-10T12:00:00Z"}`},
		{"missing time", `{"device_id": "d1", "power_watts": 1}`},
		{"bad time", `{"device_id": "d1", "power_watts": 1, "observed_at": "yesterday"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rw ReadingWire
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &rw))
			_, err := rw.ToReading()
			require.Error(t, err)
		})
	}
}
