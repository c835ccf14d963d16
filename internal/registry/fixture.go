// v1
// internal/registry/fixture.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

// LoadStaticFile reads a JSON fixture mapping user ids to device lists and
// builds a static registry from it. The file shape matches the
// device-management service's wire format:
//
//	{"user-1": [{"device_id": "d1", "name": "Fridge", "device_type": "fridge", "is_active": true}]}
func LoadStaticFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device fixture %q: %w", path, err)
	}

	var byUser map[string][]deviceDTO
	if err := json.Unmarshal(raw, &byUser); err != nil {
		return nil, fmt.Errorf("parse device fixture %q: %w", path, err)
	}

	out := make(map[string][]core.Device, len(byUser))
	for user, dtos := range byUser {
		devices := make([]core.Device, 0, len(dtos))
		for _, d := range dtos {
			if d.DeviceID == "" {
				return nil, fmt.Errorf("device fixture %q: entry for user %s missing device_id", path, user)
			}
			devices = append(devices, core.Device{
				ID:     d.DeviceID,
				Name:   d.Name,
				Type:   d.DeviceType,
				Active: d.IsActive,
			})
		}
		out[user] = devices
	}
	return NewStatic(out), nil
}
