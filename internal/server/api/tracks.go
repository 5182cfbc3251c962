package api

import (
	"net/http"
	"strings"

	"github.com/ayusman/drishti/internal/attention"
)

// TrackHandler serves /api/tracks.
type TrackHandler struct {
	source TrackSource
}

// NewTrackHandler creates a TrackHandler over source.
func NewTrackHandler(source TrackSource) *TrackHandler {
	return &TrackHandler{source: source}
}

type listTracksResponse struct {
	Tracks []attention.TrackView `json:"tracks"`
}

type sampleResponse struct {
	At        string  `json:"at"`
	Attention float64 `json:"attention"`
	Present   bool    `json:"present"`
}

type samplesResponse struct {
	ID      string           `json:"id"`
	Horizon string           `json:"horizon"`
	Samples []sampleResponse `json:"samples"`
}

type alertResponse struct {
	Timestamp    string  `json:"timestamp"`
	PersonID     string  `json:"person_id"`
	AvgAttention float64 `json:"avg_attention"`
	PresencePct  float64 `json:"presence_pct"`
	Reason       string  `json:"reason"`
}

type alertsResponse struct {
	ID     string          `json:"id"`
	Alerts []alertResponse `json:"alerts"`
}

// ServeHTTP routes:
//
//	GET /api/tracks
//	GET /api/tracks/{id}
//	GET /api/tracks/{id}/samples?horizon=long
//	GET /api/tracks/{id}/alerts
func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tracks")
	path = strings.Trim(path, "/")

	if path == "" {
		h.list(w)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		h.get(w, id)
	case "samples":
		h.samples(w, r, id)
	case "alerts":
		h.alerts(w, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *TrackHandler) list(w http.ResponseWriter) {
	tracks := h.source.Snapshot()
	if tracks == nil {
		tracks = []attention.TrackView{}
	}
	writeJSON(w, http.StatusOK, listTracksResponse{Tracks: tracks})
}

func (h *TrackHandler) get(w http.ResponseWriter, id string) {
	view, ok := h.source.Track(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *TrackHandler) samples(w http.ResponseWriter, r *http.Request, id string) {
	horizon := attention.Long
	if q := r.URL.Query().Get("horizon"); q != "" {
		parsed, err := attention.ParseHorizon(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		horizon = parsed
	}

	samples, ok := h.source.Samples(id, horizon)
	if !ok {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	resp := samplesResponse{
		ID:      id,
		Horizon: horizon.String(),
		Samples: make([]sampleResponse, 0, len(samples)),
	}
	for _, s := range samples {
		resp.Samples = append(resp.Samples, sampleResponse{
			At:        s.At.UTC().Format(timeLayout),
			Attention: s.Attention,
			Present:   s.Present,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TrackHandler) alerts(w http.ResponseWriter, id string) {
	history, ok := h.source.AlertHistory(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Track not found")
		return
	}

	resp := alertsResponse{ID: id, Alerts: make([]alertResponse, 0, len(history))}
	for _, a := range history {
		resp.Alerts = append(resp.Alerts, alertResponse{
			Timestamp:    a.Timestamp(),
			PersonID:     a.PersonID,
			AvgAttention: a.AvgAttention,
			PresencePct:  a.PresencePct,
			Reason:       a.Reason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
