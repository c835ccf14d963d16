// v1
// internal/api/json.go
package api

import (
	"encoding/json"
	"net/http"
)

type apiError struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{
		Error:     msg,
		RequestID: w.Header().Get(requestIDHeader),
	})
}
