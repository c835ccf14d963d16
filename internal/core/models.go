// v1
// internal/core/models.go
package core

import "time"

// Reading represents one validated power sample for a device. Readings are
// immutable once recorded; ingestion never mutates or replaces them.
type Reading struct {
	DeviceID   string    `json:"deviceId"`
	PowerWatts float64   `json:"powerWatts"`
	ObservedAt time.Time `json:"observedAt"`
}

// Device is reference data owned by the device-management service. The
// aggregation core treats it as a read-only scoping input supplied at query
// time.
type Device struct {
	ID     string `json:"deviceId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// Summary accumulates the aggregate statistics for a set of readings. When
// Count is zero the remaining fields carry no meaning and must not be
// interpreted; callers distinguish "no data" from "zero power" through Count.
type Summary struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Observe folds a single power sample into the summary.
func (s *Summary) Observe(watts float64) {
	if s.Count == 0 {
		s.Min = watts
		s.Max = watts
	} else {
		if watts < s.Min {
			s.Min = watts
		}
		if watts > s.Max {
			s.Max = watts
		}
	}
	s.Sum += watts
	s.Count++
}

// Average reports the mean power and whether it is defined. An empty summary
// has no average; returning ok=false keeps NaN out of downstream payloads.
func (s Summary) Average() (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum / float64(s.Count), true
}

// RankedDevice is one entry of a top-consumer ranking. Ordering is average
// power descending with device id ascending as the deterministic tiebreak.
type RankedDevice struct {
	DeviceID          string  `json:"deviceId"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	AveragePowerWatts float64 `json:"averagePowerWatts"`
}
