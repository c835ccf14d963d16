// v2
// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Endalebob/smart-home-telemetry/internal/analytics"
	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/ingest"
)

const userIDHeader = "X-User-ID"

// defaultWindowSpan backs the dashboard's "last 24 hours" view when the
// client omits the time range.
const defaultWindowSpan = 24 * time.Hour

// HandlerConfig carries the request-level tunables resolved from config.
type HandlerConfig struct {
	RequestTimeout       time.Duration
	TopDefaultLimit      int
	ReadingsDefaultLimit int
}

// Handlers serves the telemetry API on top of the analytics service. The
// authenticated user id arrives in the X-User-ID header injected by the
// upstream auth gateway; token validation never happens here.
type Handlers struct {
	svc *analytics.Service
	log *slog.Logger
	cfg HandlerConfig
}

// NewHandlers wires the handler set.
func NewHandlers(svc *analytics.Service, log *slog.Logger, cfg HandlerConfig) *Handlers {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.TopDefaultLimit <= 0 {
		cfg.TopDefaultLimit = 5
	}
	if cfg.ReadingsDefaultLimit <= 0 {
		cfg.ReadingsDefaultLimit = 100
	}
	return &Handlers{svc: svc, log: log, cfg: cfg}
}

type windowJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type summaryResponse struct {
	DeviceID          string     `json:"deviceId"`
	ReadingCount      int64      `json:"readingCount"`
	AveragePowerWatts *float64   `json:"averagePowerWatts,omitempty"`
	MaxPowerWatts     *float64   `json:"maxPowerWatts,omitempty"`
	MinPowerWatts     *float64   `json:"minPowerWatts,omitempty"`
	Window            windowJSON `json:"window"`
}

type topConsumingResponse struct {
	Devices []core.RankedDevice `json:"devices"`
	Window  windowJSON          `json:"window"`
}

type readingJSON struct {
	DeviceID   string  `json:"deviceId"`
	PowerWatts float64 `json:"powerWatts"`
	ObservedAt string  `json:"observedAt"`
}

type deviceSeriesJSON struct {
	DeviceID     string        `json:"deviceId"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	ReadingCount int64         `json:"readingCount"`
	Readings     []readingJSON `json:"readings"`
}

// handleSummary returns aggregate statistics over the user's devices. When
// no readings match, the power fields are omitted entirely; a zero average
// and "no data" are different answers.
func (h *Handlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))

	ctx, cancel := h.requestContext(r)
	defer cancel()

	sum, err := h.svc.GetSummary(ctx, userID, deviceID, window)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := summaryResponse{
		DeviceID:     deviceID,
		ReadingCount: sum.Count,
		Window:       toWindowJSON(window),
	}
	if resp.DeviceID == "" {
		resp.DeviceID = "all_devices"
	}
	if avg, defined := sum.Average(); defined {
		mn, mx := sum.Min, sum.Max
		resp.AveragePowerWatts = &avg
		resp.MinPowerWatts = &mn
		resp.MaxPowerWatts = &mx
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTopConsuming returns the user's devices ranked by average power.
func (h *Handlers) handleTopConsuming(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	limit, ok := h.limit(w, r, h.cfg.TopDefaultLimit)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	ranked, err := h.svc.GetTopConsumers(ctx, userID, window, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []core.RankedDevice{}
	}
	writeJSON(w, http.StatusOK, topConsumingResponse{Devices: ranked, Window: toWindowJSON(window)})
}

// handleDeviceReadings lists readings for one owned device, newest first.
func (h *Handlers) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	limit, ok := h.limit(w, r, h.cfg.ReadingsDefaultLimit)
	if !ok {
		return
	}
	deviceID := mux.Vars(r)["deviceId"]

	ctx, cancel := h.requestContext(r)
	defer cancel()

	readings, err := h.svc.DeviceReadings(ctx, userID, deviceID, window, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReadingsJSON(readings))
}

// handleMyDevices returns every owned device with its recent readings.
func (h *Handlers) handleMyDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	window, ok := h.window(w, r)
	if !ok {
		return
	}
	limit, ok := h.limit(w, r, h.cfg.ReadingsDefaultLimit)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	series, err := h.svc.DevicesOverview(ctx, userID, window, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]deviceSeriesJSON, 0, len(series))
	for _, s := range series {
		out = append(out, deviceSeriesJSON{
			DeviceID:     s.Device.ID,
			Name:         s.Device.Name,
			Type:         s.Device.Type,
			ReadingCount: s.Count,
			Readings:     toReadingsJSON(s.Readings),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleIngest accepts one reading as JSON and records it.
func (h *Handlers) handleIngest(w http.ResponseWriter, r *http.Request) {
	defer func() {
		_ = r.Body.Close()
	}()

	var rw ingest.ReadingWire
	if err := json.NewDecoder(r.Body).Decode(&rw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reading, err := rw.ToReading()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.svc.Ingest(ctx, reading.DeviceID, reading.PowerWatts, reading.ObservedAt); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"deviceId":   reading.DeviceID,
		"powerWatts": reading.PowerWatts,
		"observedAt": reading.ObservedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userIDHeader+" header")
		return "", false
	}
	return id, true
}

// window parses the optional RFC3339 start/end query parameters. Absent
// bounds default to the trailing 24 hours.
func (h *Handlers) window(w http.ResponseWriter, r *http.Request) (core.Window, bool) {
	q := r.URL.Query()

	end := time.Now()
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad 'end' (RFC3339)")
			return core.Window{}, false
		}
		end = t
	}
	start := end.Add(-defaultWindowSpan)
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad 'start' (RFC3339)")
			return core.Window{}, false
		}
		start = t
	}

	window, err := core.NewWindow(start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid range: start must be before end")
		return core.Window{}, false
	}
	return window, true
}

func (h *Handlers) limit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return n, true
}

func (h *Handlers) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
}

// writeServiceError maps the core error taxonomy onto HTTP statuses. Store
// failures stay generic in the payload; the detail goes to the log.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidWindow),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidReading):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUnknownDevice):
		writeError(w, http.StatusNotFound, "device not found or access denied")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "query timed out")
	default:
		h.log.Error("request_failed",
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toWindowJSON(w core.Window) windowJSON {
	return windowJSON{
		Start: w.Start.UTC().Format(time.RFC3339Nano),
		End:   w.End.UTC().Format(time.RFC3339Nano),
	}
}

func toReadingsJSON(readings []core.Reading) []readingJSON {
	out := make([]readingJSON, 0, len(readings))
	for _, r := range readings {
		out = append(out, readingJSON{
			DeviceID:   r.DeviceID,
			PowerWatts: r.PowerWatts,
			ObservedAt: r.ObservedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
