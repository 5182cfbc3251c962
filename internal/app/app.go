// Package app wires capture, detection, scoring and alerting into the
// attention pipeline.
package app

import (
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/overlay"
	"github.com/ayusman/drishti/internal/signal"
	"github.com/ayusman/drishti/internal/store"
)

// Notifier receives every alert the engine records.
type Notifier interface {
	Dispatch(rec attention.AlertRecord)
}

// Config holds configuration options for the application.
type Config struct {
	Scoring config.Scoring

	// Store and SessionID enable persistence of checks and alerts.
	Store     *store.Store
	SessionID string

	Notifier Notifier

	// TrackTimeout evicts tracks unseen for this long; 0 keeps them forever.
	TrackTimeout time.Duration

	// Associator routes faces to tracks; nil means a single track.
	Associator attention.Associator
}

// App owns the attention state of one camera and the loop that feeds it.
type App struct {
	config    Config
	source    capture.Source
	detector  detector.Detector
	extractor *signal.Extractor
	registry  *attention.Registry

	// procMu serializes frame processing.
	procMu sync.Mutex
	engine *attention.Engine

	// resumed makes the next processed frame restart the check schedule.
	resumed atomic.Bool

	mu      sync.RWMutex
	enabled bool
	stopCh  chan struct{}
	done    chan struct{}
	onAlert []func(attention.AlertRecord)
	onFrame []func(time.Time, []attention.TrackView)

	// frameMu guards the published frame and the time views are taken at.
	frameMu sync.RWMutex
	lastTS  time.Time
	jpeg    []byte
	seq     uint64
}

// New creates an App reading frames from source and landmarks from det.
// Either may be nil when only ProcessObservation is used.
func New(cfg Config, source capture.Source, det detector.Detector) *App {
	return &App{
		config:    cfg,
		source:    source,
		detector:  det,
		extractor: signal.NewExtractor(signal.NewCamera(), cfg.Scoring),
		registry:  attention.NewRegistry(cfg.Scoring, cfg.Associator),
		enabled:   true,
	}
}

// OnAlert registers fn to run for every recorded alert, on the pipeline
// goroutine.
func (a *App) OnAlert(fn func(attention.AlertRecord)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAlert = append(a.onAlert, fn)
}

// OnFrame registers fn to run after each processed camera frame with the
// current track views.
func (a *App) OnFrame(fn func(time.Time, []attention.TrackView)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onFrame = append(a.onFrame, fn)
}

// SetEnabled pauses or resumes scoring. Frames are not read while paused,
// and the first check after a resume is one full interval later.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if enabled && !a.enabled {
		a.resumed.Store(true)
	}
	a.enabled = enabled
	log.Info("scoring toggled", "enabled", enabled)
}

// IsEnabled returns whether scoring is running.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Registry returns the track registry.
func (a *App) Registry() *attention.Registry {
	return a.registry
}

// ProcessObservation runs one frame through scoring and the alert engine.
// A nil observation, or one without a face, is an absent frame. The first
// call, and the first call after a resume, anchors the check schedule at ts.
func (a *App) ProcessObservation(ts time.Time, obs *detector.Observation) []attention.Decision {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	a.finalizeCamera(obs)

	if obs != nil {
		if sig, ok := a.extractor.Extract(obs); ok {
			a.registry.Observe(ts, sig)
		} else {
			a.registry.ObserveAbsent(ts)
		}
	} else {
		a.registry.ObserveAbsent(ts)
	}

	a.frameMu.Lock()
	a.lastTS = ts
	a.frameMu.Unlock()

	if a.resumed.Swap(false) || a.engine == nil {
		a.engine = attention.NewEngine(a.config.Scoring, ts)
	}
	decisions := a.engine.Tick(ts, a.registry)
	if len(decisions) > 0 {
		a.handleDecisions(decisions)
	}

	if a.config.TrackTimeout > 0 {
		for _, id := range a.registry.Prune(ts, a.config.TrackTimeout) {
			log.Info("track evicted", "person_id", id)
		}
	}

	return decisions
}

// ProcessFrame detects landmarks in frame, scores them, draws the overlay
// onto frame and publishes it as the latest JPEG. A detection error makes
// the frame absent.
func (a *App) ProcessFrame(ts time.Time, frame *gocv.Mat) []attention.Decision {
	var obs *detector.Observation
	if a.detector != nil {
		o, err := a.detector.Detect(frame)
		if err != nil {
			log.Warn("detection failed, frame treated as absent", "error", err)
		} else if o != nil {
			cp := *o
			if cp.Width <= 0 || cp.Height <= 0 {
				cp.Width, cp.Height = frame.Cols(), frame.Rows()
			}
			obs = &cp
		}
	}

	decisions := a.ProcessObservation(ts, obs)

	views := a.Snapshot()
	overlay.Draw(frame, views)
	a.publishFrame(frame)

	a.mu.RLock()
	callbacks := a.onFrame
	a.mu.RUnlock()
	for _, fn := range callbacks {
		fn(ts, views)
	}

	return decisions
}

func (a *App) finalizeCamera(obs *detector.Observation) {
	cam := a.extractor.Camera()
	if cam.Finalized() || obs == nil || obs.Width <= 0 || obs.Height <= 0 {
		return
	}
	if err := cam.Finalize(obs.Width, obs.Height); err != nil {
		log.Warn("camera finalize failed", "width", obs.Width, "height", obs.Height, "error", err)
		return
	}
	log.Info("camera finalized", "width", obs.Width, "height", obs.Height)
}

func (a *App) handleDecisions(decisions []attention.Decision) {
	persist := a.config.Store != nil && a.config.SessionID != ""

	if persist {
		checks := make([]store.Check, 0, len(decisions))
		for _, d := range decisions {
			checks = append(checks, store.CheckFromDecision(a.config.SessionID, d))
		}
		if err := a.config.Store.Checks().Create(checks...); err != nil {
			log.Error("failed to store checks", "error", err)
		}
	}

	for _, d := range decisions {
		log.Debug("attention check",
			"person_id", d.PersonID,
			"state", d.State.String(),
			"avg_attention", d.Stats.AvgAttention,
			"presence_pct", d.Stats.PresencePct,
		)
		if d.Alert == nil {
			continue
		}
		rec := *d.Alert

		log.Info("alert",
			"timestamp", rec.Timestamp(),
			"person_id", rec.PersonID,
			"avg_attention", rec.AvgAttention,
			"presence_pct", rec.PresencePct,
			"reason", rec.Reason,
		)

		if persist {
			if err := a.config.Store.Alerts().Create(store.AlertFromRecord(a.config.SessionID, rec)); err != nil {
				log.Error("failed to store alert", "person_id", rec.PersonID, "error", err)
			}
		}
		if a.config.Notifier != nil {
			a.config.Notifier.Dispatch(rec)
		}

		a.mu.RLock()
		callbacks := a.onAlert
		a.mu.RUnlock()
		for _, fn := range callbacks {
			fn(rec)
		}
	}
}

// now is the time views are evaluated at: the last processed frame, or the
// wall clock before any frame.
func (a *App) now() time.Time {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	if a.lastTS.IsZero() {
		return time.Now()
	}
	return a.lastTS
}

// Snapshot returns views of every track.
func (a *App) Snapshot() []attention.TrackView {
	return a.registry.Snapshot(a.now())
}

// Track returns the view of one track.
func (a *App) Track(id string) (attention.TrackView, bool) {
	return a.registry.Get(id, a.now())
}

// Samples returns the samples of one window of a track.
func (a *App) Samples(id string, h attention.Horizon) ([]attention.Sample, bool) {
	return a.registry.Samples(id, h)
}

// AlertHistory returns the alerts recorded for a track.
func (a *App) AlertHistory(id string) ([]attention.AlertRecord, bool) {
	return a.registry.AlertHistory(id)
}

// LatestJPEG returns the last annotated frame and its sequence number.
func (a *App) LatestJPEG() ([]byte, uint64) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.jpeg, a.seq
}

func (a *App) publishFrame(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		log.Warn("frame encode failed", "error", err)
		return
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	a.frameMu.Lock()
	a.jpeg = data
	a.seq++
	a.frameMu.Unlock()
}
