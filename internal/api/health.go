// v1
// internal/api/health.go
package api

import (
	"net/http"
	"sync/atomic"
)

// HealthState tracks readiness so orchestration layers can gate traffic
// until the service has finished wiring its collaborators.
type HealthState struct {
	ready atomic.Bool
}

// NewHealthState starts in the not-ready state.
func NewHealthState() *HealthState {
	return &HealthState{}
}

// SetReady flips the readiness flag.
func (h *HealthState) SetReady(v bool) {
	h.ready.Store(v)
}

// Ready reports the current readiness flag.
func (h *HealthState) Ready() bool {
	return h.ready.Load()
}

func healthLiveHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func healthReadyHandler(health *HealthState) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !health.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
