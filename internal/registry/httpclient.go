// v1
// internal/registry/httpclient.go
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
)

// deviceDTO mirrors the device-management service's JSON shape.
type deviceDTO struct {
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`
	IsActive   bool   `json:"is_active"`
}

// HTTPRegistry queries the device-management service over HTTP. Transient
// failures are retried by the underlying client before surfacing to the
// caller.
type HTTPRegistry struct {
	client *resty.Client
	log    *slog.Logger
}

var _ Registry = (*HTTPRegistry)(nil)

// NewHTTPRegistry builds a client for the given base URL, e.g.
// "http://devices:8081".
func NewHTTPRegistry(baseURL string, timeout time.Duration, log *slog.Logger) *HTTPRegistry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPRegistry{client: client, log: log}
}

func (h *HTTPRegistry) DevicesForUser(ctx context.Context, userID string) ([]core.Device, error) {
	var dtos []deviceDTO
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParam("user_id", userID).
		SetResult(&dtos).
		Get("/api/devices")
	if err != nil {
		return nil, fmt.Errorf("device registry request: %w", err)
	}
	if resp.IsError() {
		h.log.Error("registry_list_failed",
			slog.String("user_id", userID),
			slog.Int("status", resp.StatusCode()),
		)
		return nil, fmt.Errorf("device registry returned status %d", resp.StatusCode())
	}

	devices := make([]core.Device, 0, len(dtos))
	for _, d := range dtos {
		devices = append(devices, core.Device{
			ID:     d.DeviceID,
			Name:   d.Name,
			Type:   d.DeviceType,
			Active: d.IsActive,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (h *HTTPRegistry) Lookup(ctx context.Context, deviceID string) (core.Device, bool, error) {
	var dto deviceDTO
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&dto).
		Get("/api/devices/" + deviceID)
	if err != nil {
		return core.Device{}, false, fmt.Errorf("device registry request: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return core.Device{}, false, nil
	}
	if resp.IsError() {
		return core.Device{}, false, fmt.Errorf("device registry returned status %d", resp.StatusCode())
	}
	return core.Device{
		ID:     dto.DeviceID,
		Name:   dto.Name,
		Type:   dto.DeviceType,
		Active: dto.IsActive,
	}, true, nil
}
