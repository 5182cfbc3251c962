package api

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/store"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// registrySource adapts a Registry at a fixed time.
type registrySource struct {
	reg *attention.Registry
	now time.Time
}

func (s registrySource) Snapshot() []attention.TrackView { return s.reg.Snapshot(s.now) }
func (s registrySource) Track(id string) (attention.TrackView, bool) {
	return s.reg.Get(id, s.now)
}
func (s registrySource) Samples(id string, h attention.Horizon) ([]attention.Sample, bool) {
	return s.reg.Samples(id, h)
}
func (s registrySource) AlertHistory(id string) ([]attention.AlertRecord, bool) {
	return s.reg.AlertHistory(id)
}

func newTestSource(t *testing.T) (registrySource, string) {
	t.Helper()

	cfg := config.DefaultScoring()
	reg := attention.NewRegistry(cfg, nil)
	sig := attention.FrameSignals{FaceBox: image.Rect(100, 100, 200, 200), EAR: 0.3}

	var id string
	ts := t0
	for i := 0; i < 20; i++ {
		id = reg.Observe(ts, sig)
		ts = ts.Add(cfg.FramePeriod())
	}
	reg.With(id, func(tr *attention.Track) {
		tr.AlertHistory = append(tr.AlertHistory, attention.AlertRecord{
			At: t0, PersonID: id, AvgAttention: 0.2, PresencePct: 1, Reason: "5min avg < threshold (50.0%)",
		})
	})
	return registrySource{reg: reg, now: ts}, id
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTrackHandler_List(t *testing.T) {
	src, id := newTestSource(t)
	rec := serve(NewTrackHandler(src), http.MethodGet, "/api/tracks")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp listTracksResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, id, resp.Tracks[0].ID)
	assert.Equal(t, attention.Box{X: 100, Y: 100, Width: 100, Height: 100}, resp.Tracks[0].Box)
	assert.InDelta(t, 1.0, resp.Tracks[0].EMAAttention, 1e-9)
}

func TestTrackHandler_ListEmpty(t *testing.T) {
	src := registrySource{reg: attention.NewRegistry(config.DefaultScoring(), nil), now: t0}
	rec := serve(NewTrackHandler(src), http.MethodGet, "/api/tracks")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tracks":[]}`, rec.Body.String())
}

func TestTrackHandler_Get(t *testing.T) {
	src, id := newTestSource(t)
	h := NewTrackHandler(src)

	rec := serve(h, http.MethodGet, "/api/tracks/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var view attention.TrackView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, 1, view.Alerts)

	rec = serve(h, http.MethodGet, "/api/tracks/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrackHandler_Samples(t *testing.T) {
	src, id := newTestSource(t)
	h := NewTrackHandler(src)

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantLen  int
		horizon  string
	}{
		{"default long", "/api/tracks/" + id + "/samples", http.StatusOK, 20, "long"},
		{"short by name", "/api/tracks/" + id + "/samples?horizon=short", http.StatusOK, 15, "short"},
		{"medium by label", "/api/tracks/" + id + "/samples?horizon=30s", http.StatusOK, 20, "medium"},
		{"bad horizon", "/api/tracks/" + id + "/samples?horizon=day", http.StatusBadRequest, 0, ""},
		{"unknown track", "/api/tracks/missing/samples", http.StatusNotFound, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.target)
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp samplesResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.horizon, resp.Horizon)
			assert.Len(t, resp.Samples, tt.wantLen)
		})
	}
}

func TestTrackHandler_Alerts(t *testing.T) {
	src, id := newTestSource(t)
	rec := serve(NewTrackHandler(src), http.MethodGet, "/api/tracks/"+id+"/alerts")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp alertsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "2024-03-01T09:00:00Z", resp.Alerts[0].Timestamp)
	assert.Equal(t, "5min avg < threshold (50.0%)", resp.Alerts[0].Reason)
}

func TestTrackHandler_Errors(t *testing.T) {
	src, id := newTestSource(t)
	h := NewTrackHandler(src)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/api/tracks").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/tracks/"+id+"/nope").Code)
}

func TestSessionHandler(t *testing.T) {
	s := newTestStore(t)
	h := NewSessionHandler(s)

	require.NoError(t, s.Sessions().Create(&store.Session{ID: "s1", StartedAt: t0}))
	require.NoError(t, s.Sessions().Create(&store.Session{ID: "s2", StartedAt: t0.Add(time.Hour), CameraID: 1}))
	require.NoError(t, s.Sessions().End("s1", t0.Add(30*time.Minute)))
	require.NoError(t, s.Alerts().Create(store.AlertFromRecord("s1", attention.AlertRecord{
		At: t0.Add(5 * time.Minute), PersonID: "p1", AvgAttention: 0.3, PresencePct: 1, Reason: "r",
	})))
	require.NoError(t, s.Checks().Create(store.Check{SessionID: "s1", PersonID: "p1", At: t0.Add(5 * time.Minute), State: "alerted"}))

	t.Run("list", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/sessions")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listSessionsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Sessions, 2)
		assert.Equal(t, "s2", resp.Sessions[0].ID)
		assert.True(t, resp.Sessions[0].Active)
		assert.Equal(t, "s1", resp.Sessions[1].ID)
		assert.False(t, resp.Sessions[1].Active)
		assert.Equal(t, 1, resp.Sessions[1].Alerts)
		assert.Equal(t, "2024-03-01T09:30:00.000Z", resp.Sessions[1].EndedAt)
	})

	t.Run("get", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/sessions/s1")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			ID        string        `json:"id"`
			Alerts    int           `json:"alerts"`
			AlertList []store.Alert `json:"alert_list"`
			Checks    []store.Check `json:"checks"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "s1", resp.ID)
		assert.Equal(t, 1, resp.Alerts)
		require.Len(t, resp.AlertList, 1)
		assert.Equal(t, "p1", resp.AlertList[0].PersonID)
		require.Len(t, resp.Checks, 1)
		assert.Equal(t, "alerted", resp.Checks[0].State)
	})

	t.Run("get without alerts", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/api/sessions/s2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"alert_list":[]`)
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/sessions/none").Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodDelete, "/api/sessions/s1").Code)
	})
}
