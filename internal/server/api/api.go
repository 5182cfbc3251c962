// Package api provides the JSON HTTP handlers for live tracks and stored
// sessions.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/drishti/internal/attention"
)

// TrackSource gives read access to live tracks. Every method returns copies.
type TrackSource interface {
	Snapshot() []attention.TrackView
	Track(id string) (attention.TrackView, bool)
	Samples(id string, h attention.Horizon) ([]attention.Sample, bool)
	AlertHistory(id string) ([]attention.AlertRecord, bool)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
