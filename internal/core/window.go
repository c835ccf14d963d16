// v1
// internal/core/window.go
package core

import (
	"fmt"
	"time"
)

// Window is the half-open interval [Start, End) used to scope every query.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates that start precedes end and returns the window.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("%w: start must be before end", ErrInvalidWindow)
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// ValidateReading rejects readings with negative power or an observation time
// beyond now plus the allowed clock skew. A zero observation time is also
// rejected because it always means a decoding failure upstream.
func ValidateReading(r Reading, now time.Time, skew time.Duration) error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: missing device id", ErrInvalidReading)
	}
	if r.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing observation time", ErrInvalidReading)
	}
	if r.PowerWatts < 0 {
		return fmt.Errorf("%w: negative power %.3f", ErrInvalidReading, r.PowerWatts)
	}
	if r.ObservedAt.After(now.Add(skew)) {
		return fmt.Errorf("%w: observation time %s is in the future", ErrInvalidReading, r.ObservedAt.Format(time.RFC3339))
	}
	return nil
}
