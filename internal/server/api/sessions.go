package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/drishti/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// SessionHandler serves /api/sessions from the store.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID        string `json:"id"`
	CameraID  int    `json:"camera_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
	Active    bool   `json:"active"`
	Alerts    int    `json:"alerts"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type sessionDetailResponse struct {
	sessionResponse
	AlertList []store.Alert `json:"alert_list"`
	Checks    []store.Check `json:"checks"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (h *SessionHandler) toResponse(s *store.Session) (sessionResponse, error) {
	n, err := h.store.Alerts().CountBySession(s.ID)
	if err != nil {
		return sessionResponse{}, err
	}
	resp := sessionResponse{
		ID:        s.ID,
		CameraID:  s.CameraID,
		StartedAt: formatTime(s.StartedAt),
		Active:    s.Active(),
		Alerts:    n,
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp, nil
}

// ServeHTTP routes GET /api/sessions and GET /api/sessions/{id}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions"), "/")
	if id == "" {
		h.list(w)
		return
	}
	h.get(w, id)
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp, err := h.toResponse(s)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count alerts")
			return
		}
		response.Sessions = append(response.Sessions, resp)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	summary, err := h.toResponse(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count alerts")
		return
	}

	alerts, err := h.store.Alerts().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	checks, err := h.store.Checks().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list checks")
		return
	}

	if alerts == nil {
		alerts = []store.Alert{}
	}
	if checks == nil {
		checks = []store.Check{}
	}
	writeJSON(w, http.StatusOK, sessionDetailResponse{
		sessionResponse: summary,
		AlertList:       alerts,
		Checks:          checks,
	})
}
