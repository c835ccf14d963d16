// v2
// internal/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Endalebob/smart-home-telemetry/internal/aggregate"
	"github.com/Endalebob/smart-home-telemetry/internal/cache"
	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/metrics"
	"github.com/Endalebob/smart-home-telemetry/internal/registry"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

// Config carries the service tunables resolved from configuration. TTLs are
// policy, not contract; deployments adjust them freely.
type Config struct {
	// CacheTTL bounds how long summaries and rankings are served from cache.
	CacheTTL time.Duration
	// ClockSkew is the tolerance for readings observed slightly in the future.
	ClockSkew time.Duration
	// MaxLimit caps the limit accepted for rankings and listings.
	MaxLimit int
}

// Service answers the dashboard's analytics queries over the reading store.
// Summaries and rankings are memoized per (kind, user, scope, window) key
// with single-flight deduplication, so a burst of identical dashboard
// requests costs one aggregation.
type Service struct {
	store    store.ReadingStore
	registry registry.Registry
	cache    *cache.Cache
	log      *slog.Logger
	cfg      Config
}

// New wires the service. All collaborators are required.
func New(s store.ReadingStore, reg registry.Registry, c *cache.Cache, log *slog.Logger, cfg Config) *Service {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 1000
	}
	return &Service{store: s, registry: reg, cache: c, log: log, cfg: cfg}
}

// DeviceSeries groups a device with its readings in a window, newest first.
type DeviceSeries struct {
	Device   core.Device
	Count    int64
	Readings []core.Reading
}

// GetSummary aggregates power statistics over the user's devices inside the
// window. A non-empty deviceID restricts the summary to that single device;
// requesting a device the user does not own fails with core.ErrUnknownDevice.
func (s *Service) GetSummary(ctx context.Context, userID, deviceID string, w core.Window) (core.Summary, error) {
	if err := validateWindow(w); err != nil {
		return core.Summary{}, err
	}
	devices, err := s.registry.DevicesForUser(ctx, userID)
	if err != nil {
		return core.Summary{}, fmt.Errorf("resolve device scope: %w", err)
	}

	var scope []string
	if deviceID != "" {
		if _, ok := findDevice(devices, deviceID); !ok {
			return core.Summary{}, fmt.Errorf("%w: %s", core.ErrUnknownDevice, deviceID)
		}
		scope = []string{deviceID}
	} else {
		scope = deviceIDs(devices)
	}

	key := fmt.Sprintf("summary|%s|%s|%d|%d", userID, deviceID, w.Start.UnixNano(), w.End.UnixNano())
	v, err := s.cache.GetOrCompute(ctx, key, s.cfg.CacheTTL, func(ctx context.Context) (any, error) {
		return aggregate.Summarize(ctx, s.store, scope, w)
	})
	if err != nil {
		return core.Summary{}, err
	}
	return v.(core.Summary), nil
}

// GetTopConsumers ranks the user's devices by average power inside the
// window, excluding devices without readings. limit must be positive and at
// most the configured maximum.
func (s *Service) GetTopConsumers(ctx context.Context, userID string, w core.Window, limit int) ([]core.RankedDevice, error) {
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", core.ErrInvalidArgument)
	}
	if limit > s.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: limit exceeds maximum %d", core.ErrInvalidArgument, s.cfg.MaxLimit)
	}
	devices, err := s.registry.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve device scope: %w", err)
	}

	key := fmt.Sprintf("top|%s|%d|%d|%d", userID, w.Start.UnixNano(), w.End.UnixNano(), limit)
	v, err := s.cache.GetOrCompute(ctx, key, s.cfg.CacheTTL, func(ctx context.Context) (any, error) {
		return aggregate.TopConsumers(ctx, s.store, devices, w, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.RankedDevice), nil
}

// DeviceReadings lists readings for one owned device, newest first, capped
// at limit. Listings are not cached: they feed detail views whose staleness
// is more visible than the dashboard aggregates.
func (s *Service) DeviceReadings(ctx context.Context, userID, deviceID string, w core.Window, limit int) ([]core.Reading, error) {
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", core.ErrInvalidArgument)
	}
	if limit > s.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: limit exceeds maximum %d", core.ErrInvalidArgument, s.cfg.MaxLimit)
	}
	devices, err := s.registry.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve device scope: %w", err)
	}
	if _, ok := findDevice(devices, deviceID); !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownDevice, deviceID)
	}

	_, readings, err := s.collectSeries(ctx, deviceID, w, limit)
	return readings, err
}

// DevicesOverview returns every owned device with its reading count and the
// most recent readings in the window, mirroring the dashboard's per-device
// panels.
func (s *Service) DevicesOverview(ctx context.Context, userID string, w core.Window, perDeviceLimit int) ([]DeviceSeries, error) {
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if perDeviceLimit <= 0 || perDeviceLimit > s.cfg.MaxLimit {
		return nil, fmt.Errorf("%w: per-device limit out of range", core.ErrInvalidArgument)
	}
	devices, err := s.registry.DevicesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve device scope: %w", err)
	}

	out := make([]DeviceSeries, 0, len(devices))
	for _, d := range devices {
		count, readings, err := s.collectSeries(ctx, d.ID, w, perDeviceLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, DeviceSeries{Device: d, Count: count, Readings: readings})
	}
	return out, nil
}

// Ingest validates and records one reading. The device must exist in the
// registry; validation failures are rejected, not retried.
func (s *Service) Ingest(ctx context.Context, deviceID string, powerWatts float64, observedAt time.Time) error {
	r := core.Reading{DeviceID: deviceID, PowerWatts: powerWatts, ObservedAt: observedAt}
	if err := core.ValidateReading(r, time.Now(), s.cfg.ClockSkew); err != nil {
		metrics.ObserveIngest(metrics.IngestInvalid)
		return err
	}

	_, found, err := s.registry.Lookup(ctx, deviceID)
	if err != nil {
		metrics.ObserveIngest(metrics.IngestFailed)
		return fmt.Errorf("lookup device: %w", err)
	}
	if !found {
		metrics.ObserveIngest(metrics.IngestUnknownDevice)
		return fmt.Errorf("%w: %s", core.ErrUnknownDevice, deviceID)
	}

	if err := s.store.Record(ctx, r); err != nil {
		metrics.ObserveIngest(metrics.IngestFailed)
		return err
	}
	metrics.ObserveIngest(metrics.IngestAccepted)
	return nil
}

// collectSeries scans one device's window ascending and keeps the last limit
// readings, returned newest first alongside the total match count.
func (s *Service) collectSeries(ctx context.Context, deviceID string, w core.Window, limit int) (int64, []core.Reading, error) {
	var count int64
	tail := make([]core.Reading, 0, limit)
	err := s.store.Scan(ctx, []string{deviceID}, w, func(r core.Reading) error {
		count++
		if len(tail) == limit {
			copy(tail, tail[1:])
			tail = tail[:limit-1]
		}
		tail = append(tail, r)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	// Reverse in place: the scan is ascending, the API serves newest first.
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return count, tail, nil
}

func validateWindow(w core.Window) error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: start must be before end", core.ErrInvalidWindow)
	}
	return nil
}

func findDevice(devices []core.Device, id string) (core.Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return core.Device{}, false
}

func deviceIDs(devices []core.Device) []string {
	ids := make([]string, 0, len(devices))
	for _, d := range devices {
		ids = append(ids, d.ID)
	}
	return ids
}
