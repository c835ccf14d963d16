// v1
// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all HTTP routes exposed by the telemetry aggregation
// service. Route names feed the metrics middleware so label cardinality
// stays bounded regardless of path parameters.
func NewRouter(h *Handlers, health *HealthState, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Handle("/health", healthLiveHandler()).Methods(http.MethodGet).Name("health")
	r.Handle("/health/ready", healthReadyHandler(health)).Methods(http.MethodGet).Name("health_ready")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	t := r.PathPrefix("/api/telemetry").Subrouter()
	t.HandleFunc("/ingest", h.handleIngest).Methods(http.MethodPost).Name("ingest")
	t.HandleFunc("/summary", h.handleSummary).Methods(http.MethodGet).Name("summary")
	t.HandleFunc("/top-consuming", h.handleTopConsuming).Methods(http.MethodGet).Name("top_consuming")
	t.HandleFunc("/my-devices", h.handleMyDevices).Methods(http.MethodGet).Name("my_devices")
	t.HandleFunc("/device/{deviceId}", h.handleDeviceReadings).Methods(http.MethodGet).Name("device_readings")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
