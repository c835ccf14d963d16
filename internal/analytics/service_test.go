// v2
// internal/analytics/service_test.go
package analytics

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Endalebob/smart-home-telemetry/internal/cache"
	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/registry"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

var base = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

// countingStore wraps a ReadingStore and counts Scan calls so tests can
// verify that cached queries skip the store entirely.
type countingStore struct {
	store.ReadingStore
	scans atomic.Int32
}

func (c *countingStore) Scan(ctx context.Context, ids []string, w core.Window, fn func(core.Reading) error) error {
	c.scans.Add(1)
	return c.ReadingStore.Scan(ctx, ids, w, fn)
}

type fixture struct {
	svc   *Service
	store *countingStore
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()

	mem := store.NewMemoryStore(time.Now, 2*time.Minute)
	seed := []core.Reading{
		{DeviceID: "d1", PowerWatts: 50, ObservedAt: base.Add(time.Minute)},
		{DeviceID: "d2", PowerWatts: 100, ObservedAt: base.Add(time.Minute)},
		{DeviceID: "d2", PowerWatts: 200, ObservedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range seed {
		require.NoError(t, mem.Record(context.Background(), r))
	}

	reg := registry.NewStatic(map[string][]core.Device{
		"u1": {
			{ID: "d1", Name: "Fridge", Type: "fridge", Active: true},
			{ID: "d2", Name: "AC", Type: "ac", Active: true},
			{ID: "d3", Name: "TV", Type: "tv", Active: true},
		},
		"u2": {{ID: "d9", Name: "Heater", Type: "heater", Active: true}},
	})

	cs := &countingStore{ReadingStore: mem}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(cs, reg, cache.New(time.Now), log, Config{
		CacheTTL:  ttl,
		ClockSkew: 2 * time.Minute,
		MaxLimit:  100,
	})
	return &fixture{svc: svc, store: cs}
}

func window(t *testing.T) core.Window {
	t.Helper()
	w, err := core.NewWindow(base, base.Add(time.Hour))
	require.NoError(t, err)
	return w
}

func TestGetSummaryAggregatesAllUserDevices(t *testing.T) {
	f := newFixture(t, time.Minute)

	sum, err := f.svc.GetSummary(context.Background(), "u1", "", window(t))
	require.NoError(t, err)
	require.EqualValues(t, 3, sum.Count)
	require.Equal(t, 50.0, sum.Min)
	require.Equal(t, 200.0, sum.Max)
}

func TestGetSummarySingleDeviceAndOwnershipCheck(t *testing.T) {
	f := newFixture(t, time.Minute)

	sum, err := f.svc.GetSummary(context.Background(), "u1", "d2", window(t))
	require.NoError(t, err)
	require.EqualValues(t, 2, sum.Count)
	avg, defined := sum.Average()
	require.True(t, defined)
	require.Equal(t, 150.0, avg)

	// d9 belongs to u2; u1 must not see it.
	_, err = f.svc.GetSummary(context.Background(), "u1", "d9", window(t))
	require.ErrorIs(t, err, core.ErrUnknownDevice)
}

func TestGetSummaryNoDataIsExplicitEmptyResult(t *testing.T) {
	f := newFixture(t, time.Minute)

	sum, err := f.svc.GetSummary(context.Background(), "u1", "d3", window(t))
	require.NoError(t, err)
	require.Zero(t, sum.Count)
}

func TestGetSummaryServesRepeatsFromCache(t *testing.T) {
	f := newFixture(t, time.Minute)
	w := window(t)

	_, err := f.svc.GetSummary(context.Background(), "u1", "", w)
	require.NoError(t, err)
	scansAfterFirst := f.store.scans.Load()

	_, err = f.svc.GetSummary(context.Background(), "u1", "", w)
	require.NoError(t, err)
	require.Equal(t, scansAfterFirst, f.store.scans.Load())

	// A different window is a different cache key.
	w2, err := core.NewWindow(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = f.svc.GetSummary(context.Background(), "u1", "", w2)
	require.NoError(t, err)
	require.Greater(t, f.store.scans.Load(), scansAfterFirst)
}

func TestGetTopConsumersRanksAndExcludesSilentDevices(t *testing.T) {
	f := newFixture(t, time.Minute)

	ranked, err := f.svc.GetTopConsumers(context.Background(), "u1", window(t), 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, "d2", ranked[0].DeviceID)
	require.Equal(t, "AC", ranked[0].Name)
	require.Equal(t, 150.0, ranked[0].AveragePowerWatts)
	require.Equal(t, "d1", ranked[1].DeviceID)
}

func TestGetTopConsumersValidatesLimit(t *testing.T) {
	f := newFixture(t, time.Minute)

	_, err := f.svc.GetTopConsumers(context.Background(), "u1", window(t), 0)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = f.svc.GetTopConsumers(context.Background(), "u1", window(t), 101)
	require.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestQueriesRejectInvalidWindow(t *testing.T) {
	f := newFixture(t, time.Minute)
	bad := core.Window{Start: base, End: base}

	_, err := f.svc.GetSummary(context.Background(), "u1", "", bad)
	require.ErrorIs(t, err, core.ErrInvalidWindow)
	_, err = f.svc.GetTopConsumers(context.Background(), "u1", bad, 5)
	require.ErrorIs(t, err, core.ErrInvalidWindow)
}

func TestDeviceReadingsNewestFirstWithLimit(t *testing.T) {
	f := newFixture(t, time.Minute)

	readings, err := f.svc.DeviceReadings(context.Background(), "u1", "d2", window(t), 1)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	require.Equal(t, 200.0, readings[0].PowerWatts)

	all, err := f.svc.DeviceReadings(context.Background(), "u1", "d2", window(t), 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].ObservedAt.After(all[1].ObservedAt))

	_, err = f.svc.DeviceReadings(context.Background(), "u1", "d9", window(t), 10)
	require.ErrorIs(t, err, core.ErrUnknownDevice)
}

func TestDevicesOverviewCountsPerDevice(t *testing.T) {
	f := newFixture(t, time.Minute)

	series, err := f.svc.DevicesOverview(context.Background(), "u1", window(t), 10)
	require.NoError(t, err)
	require.Len(t, series, 3)

	byID := map[string]DeviceSeries{}
	for _, s := range series {
		byID[s.Device.ID] = s
	}
	require.EqualValues(t, 1, byID["d1"].Count)
	require.EqualValues(t, 2, byID["d2"].Count)
	require.EqualValues(t, 0, byID["d3"].Count)
	require.Empty(t, byID["d3"].Readings)
}

func TestIngestValidatesAndRecords(t *testing.T) {
	f := newFixture(t, time.Minute)
	now := time.Now()

	require.NoError(t, f.svc.Ingest(context.Background(), "d1", 75, now.Add(-time.Second)))

	err := f.svc.Ingest(context.Background(), "d1", -5, now)
	require.ErrorIs(t, err, core.ErrInvalidReading)

	err = f.svc.Ingest(context.Background(), "ghost", 75, now)
	require.ErrorIs(t, err, core.ErrUnknownDevice)

	err = f.svc.Ingest(context.Background(), "d1", 75, now.Add(time.Hour))
	require.ErrorIs(t, err, core.ErrInvalidReading)
}
