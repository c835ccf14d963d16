// v1
// internal/registry/registry.go
package registry

import (
	"context"
	"sort"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

// Registry resolves the device set a user is allowed to query. The device
// management service owns this data; the aggregation core only consumes it.
type Registry interface {
	// DevicesForUser returns every device registered to the user, in device
	// id order. An unknown user simply has no devices.
	DevicesForUser(ctx context.Context, userID string) ([]core.Device, error)

	// Lookup resolves a single device by id regardless of owner. The second
	// return reports whether the device exists.
	Lookup(ctx context.Context, deviceID string) (core.Device, bool, error)
}

// Static serves devices from an in-memory fixture. It backs tests and
// standalone runs where no device-management service is reachable.
type Static struct {
	byUser   map[string][]core.Device
	byDevice map[string]core.Device
}

var _ Registry = (*Static)(nil)

// NewStatic indexes the supplied ownership map. The input is copied so later
// mutation by the caller cannot leak into the registry.
func NewStatic(byUser map[string][]core.Device) *Static {
	s := &Static{
		byUser:   make(map[string][]core.Device, len(byUser)),
		byDevice: make(map[string]core.Device),
	}
	for user, devices := range byUser {
		cp := make([]core.Device, len(devices))
		copy(cp, devices)
		sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
		s.byUser[user] = cp
		for _, d := range cp {
			s.byDevice[d.ID] = d
		}
	}
	return s
}

func (s *Static) DevicesForUser(_ context.Context, userID string) ([]core.Device, error) {
	devices := s.byUser[userID]
	out := make([]core.Device, len(devices))
	copy(out, devices)
	return out, nil
}

func (s *Static) Lookup(_ context.Context, deviceID string) (core.Device, bool, error) {
	d, ok := s.byDevice[deviceID]
	return d, ok, nil
}
