// v2
// internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Endalebob/smart-home-telemetry/internal/analytics"
	"github.com/Endalebob/smart-home-telemetry/internal/cache"
	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/registry"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

var base = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (http.Handler, *HealthState) {
	t.Helper()

	mem := store.NewMemoryStore(time.Now, 2*time.Minute)
	for _, r := range []core.Reading{
		{DeviceID: "d1", PowerWatts: 50, ObservedAt: base.Add(time.Minute)},
		{DeviceID: "d2", PowerWatts: 100, ObservedAt: base.Add(time.Minute)},
		{DeviceID: "d2", PowerWatts: 200, ObservedAt: base.Add(2 * time.Minute)},
	} {
		require.NoError(t, mem.Record(context.Background(), r))
	}

	reg := registry.NewStatic(map[string][]core.Device{
		"u1": {
			{ID: "d1", Name: "Fridge", Type: "fridge", Active: true},
			{ID: "d2", Name: "AC", Type: "ac", Active: true},
		},
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := analytics.New(mem, reg, cache.New(time.Now), log, analytics.Config{
		CacheTTL:  time.Minute,
		ClockSkew: 2 * time.Minute,
		MaxLimit:  100,
	})
	h := NewHandlers(svc, log, HandlerConfig{
		RequestTimeout:       2 * time.Second,
		TopDefaultLimit:      5,
		ReadingsDefaultLimit: 100,
	})
	health := NewHealthState()
	return NewRouter(h, health, log), health
}

func doRequest(t *testing.T, router http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func windowQuery() string {
	return "start=" + base.Format(time.RFC3339) + "&end=" + base.Add(time.Hour).Format(time.RFC3339)
}

func TestSummaryRequiresUserHeader(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/summary?"+windowQuery(), "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.NotEmpty(t, e.Error)
	require.NotEmpty(t, e.RequestID)
}

func TestSummaryReturnsAggregates(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/summary?"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "all_devices", resp.DeviceID)
	require.EqualValues(t, 3, resp.ReadingCount)
	require.NotNil(t, resp.AveragePowerWatts)
	require.NotNil(t, resp.MinPowerWatts)
	require.Equal(t, 50.0, *resp.MinPowerWatts)
	require.Equal(t, 200.0, *resp.MaxPowerWatts)
}

func TestSummaryOmitsStatisticsWhenNoData(t *testing.T) {
	router, _ := newTestRouter(t)
	// A window before any readings exist.
	q := "start=" + base.Add(-2*time.Hour).Format(time.RFC3339) + "&end=" + base.Format(time.RFC3339)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/summary?"+q, "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.EqualValues(t, 0, raw["readingCount"])
	require.NotContains(t, raw, "averagePowerWatts")
	require.NotContains(t, raw, "minPowerWatts")
}

func TestSummaryRejectsBadWindow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/summary?start=yesterday", "u1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	q := "start=" + base.Add(time.Hour).Format(time.RFC3339) + "&end=" + base.Format(time.RFC3339)
	rec = doRequest(t, router, http.MethodGet, "/api/telemetry/summary?"+q, "u1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryUnknownDeviceIs404(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/summary?device_id=ghost&"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopConsumingOrdersByAverage(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/top-consuming?"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp topConsumingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Devices, 2)
	require.Equal(t, "d2", resp.Devices[0].DeviceID)
	require.Equal(t, 150.0, resp.Devices[0].AveragePowerWatts)
	require.Equal(t, "d1", resp.Devices[1].DeviceID)
}

func TestTopConsumingRejectsBadLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/top-consuming?limit=abc&"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/telemetry/top-consuming?limit=-1&"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceReadingsNewestFirst(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/device/d2?"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var readings []readingJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &readings))
	require.Len(t, readings, 2)
	require.Equal(t, 200.0, readings[0].PowerWatts)
	require.Equal(t, 100.0, readings[1].PowerWatts)
}

func TestMyDevicesGroupsPerDevice(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/my-devices?"+windowQuery(), "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var series []deviceSeriesJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series, 2)
	byID := map[string]deviceSeriesJSON{}
	for _, s := range series {
		byID[s.DeviceID] = s
	}
	require.EqualValues(t, 2, byID["d2"].ReadingCount)
	require.Equal(t, "Fridge", byID["d1"].Name)
}

func TestIngestAcceptsAndValidates(t *testing.T) {
	router, _ := newTestRouter(t)
	observed := time.Now().Add(-time.Second).UTC().Format(time.RFC3339)

	rec := doRequest(t, router, http.MethodPost, "/api/telemetry/ingest", "",
		`{"device_id": "d1", "power_watts": 75, "observed_at": "`+observed+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/telemetry/ingest", "", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/telemetry/ingest", "",
		`{"device_id": "d1", "power_watts": -5, "observed_at": "`+observed+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/telemetry/ingest", "",
		`{"device_id": "ghost", "power_watts": 5, "observed_at": "`+observed+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router, health := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health.SetReady(true)
	rec = doRequest(t, router, http.MethodGet, "/health/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/telemetry/nope", "u1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.Equal(t, "not found", e.Error)
}
