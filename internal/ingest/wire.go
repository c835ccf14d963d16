// v1
// internal/ingest/wire.go
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

// ReadingWire accepts the loose shapes simulators and firmware actually send:
// string or numeric device ids, RFC3339 or unix-millisecond timestamps,
// numbers serialized as strings.
type ReadingWire struct {
	DeviceID   any `json:"device_id"`
	PowerWatts any `json:"power_watts"`
	ObservedAt any `json:"observed_at"`
}

// ToReading normalizes the wire payload into a core.Reading. Validation
// against clock skew happens later in the service; this only handles shape.
func (rw ReadingWire) ToReading() (core.Reading, error) {
	var r core.Reading
	var err error

	r.DeviceID, err = toString(rw.DeviceID)
	if err != nil || r.DeviceID == "" {
		return r, fmt.Errorf("invalid device_id: %v", err)
	}
	r.PowerWatts, err = toFloat(rw.PowerWatts)
	if err != nil {
		return r, fmt.Errorf("invalid power_watts: %v", err)
	}
	r.ObservedAt, err = toTime(rw.ObservedAt)
	if err != nil || r.ObservedAt.IsZero() {
		return r, fmt.Errorf("invalid observed_at: %v", err)
	}
	return r, nil
}

// toString converts v to string if possible.
func toString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		// JSON numbers decode to float64; treat as integer id occasionally
		return strconv.FormatInt(int64(t), 10), nil
	case nil:
		return "", errors.New("missing")
	default:
		return "", fmt.Errorf("cannot parse string from %T", v)
	}
}

// toFloat converts v to float64 if possible.
func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case nil:
		return 0, errors.New("missing")
	default:
		return 0, fmt.Errorf("cannot parse float from %T", v)
	}
}

// toTime converts v to time.Time if possible.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts, nil
		}
		// try unix seconds or milliseconds
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return fromUnix(n), nil
		}
		return time.Time{}, fmt.Errorf("bad timestamp string: %q", t)
	case float64:
		return fromUnix(int64(t)), nil
	case int64:
		return fromUnix(t), nil
	case nil:
		return time.Time{}, errors.New("missing")
	default:
		return time.Time{}, fmt.Errorf("cannot parse time from %T", v)
	}
}

func fromUnix(n int64) time.Time {
	if n > 1_000_000_000_000 { // likely milliseconds
		return time.Unix(0, n*int64(time.Millisecond))
	}
	return time.Unix(n, 0)
}
