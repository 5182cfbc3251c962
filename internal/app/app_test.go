package app

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/store"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []attention.AlertRecord
}

func (n *recordingNotifier) Dispatch(rec attention.AlertRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, rec)
}

func (n *recordingNotifier) Alerts() []attention.AlertRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]attention.AlertRecord(nil), n.alerts...)
}

// fastScoring keeps the five minute window at two frames per second so a
// full window is 600 frames.
func fastScoring() config.Scoring {
	cfg := config.DefaultScoring()
	cfg.FPS = 2
	return cfg
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Sessions().Create(&store.Session{ID: "session-1", StartedAt: t0}); err != nil {
		t.Fatalf("Sessions().Create() error = %v", err)
	}
	return s
}

// feed runs frames 0..n through a, every tenth frame without a face.
func feed(a *App, cfg config.Scoring, n int, face detector.FaceOptions) []attention.Decision {
	var all []attention.Decision
	for i := 0; i <= n; i++ {
		ts := t0.Add(time.Duration(i) * cfg.FramePeriod())
		var obs *detector.Observation
		if i%10 != 0 {
			obs = detector.SyntheticObservation(face)
		}
		all = append(all, a.ProcessObservation(ts, obs)...)
	}
	return all
}

func TestApp_AbsentFramesBeforeFirstFace(t *testing.T) {
	a := New(Config{Scoring: fastScoring()}, nil, nil)

	for i := 0; i < 5; i++ {
		if d := a.ProcessObservation(t0.Add(time.Duration(i)*time.Second), nil); d != nil {
			t.Errorf("frame %d: unexpected decisions %v", i, d)
		}
	}
	a.ProcessObservation(t0.Add(5*time.Second), &detector.Observation{Width: 640, Height: 480})

	if n := a.Registry().Len(); n != 0 {
		t.Errorf("Registry().Len() = %d, want 0", n)
	}
	if views := a.Snapshot(); len(views) != 0 {
		t.Errorf("Snapshot() = %v, want empty", views)
	}
}

func TestApp_CameraFinalizedFromFirstObservation(t *testing.T) {
	a := New(Config{Scoring: fastScoring()}, nil, nil)
	cam := a.extractor.Camera()

	a.ProcessObservation(t0, nil)
	if cam.Finalized() {
		t.Fatal("camera should wait for a sized observation")
	}

	a.ProcessObservation(t0.Add(time.Second), detector.SyntheticObservation(detector.FaceOptions{Width: 1280, Height: 720}))
	if !cam.Finalized() {
		t.Fatal("camera should be finalized")
	}
	if w, h := cam.Size(); w != 1280 || h != 720 {
		t.Errorf("Size() = %dx%d, want 1280x720", w, h)
	}

	// later sizes do not refinalize
	a.ProcessObservation(t0.Add(2*time.Second), detector.SyntheticObservation(detector.FaceOptions{}))
	if w, _ := cam.Size(); w != 1280 {
		t.Errorf("width changed to %d", w)
	}
}

func TestApp_AttentiveSubjectDoesNotAlert(t *testing.T) {
	cfg := fastScoring()
	s := newTestStore(t)
	notifier := &recordingNotifier{}
	a := New(Config{Scoring: cfg, Store: s, SessionID: "session-1", Notifier: notifier}, nil, nil)

	decisions := feed(a, cfg, 600, detector.FaceOptions{})

	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
	d := decisions[0]
	if d.State != attention.StateNormal {
		t.Errorf("State = %v, want normal", d.State)
	}
	if math.Abs(d.Stats.PresencePct-0.9) > 1e-9 {
		t.Errorf("PresencePct = %v, want 0.9", d.Stats.PresencePct)
	}
	if d.Stats.AvgAttention < 0.95 {
		t.Errorf("AvgAttention = %v, want about 1", d.Stats.AvgAttention)
	}
	if got := notifier.Alerts(); len(got) != 0 {
		t.Errorf("unexpected alerts %v", got)
	}

	checks, err := s.Checks().ListBySession("session-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(checks) != 1 || checks[0].State != "normal" || checks[0].Samples != 600 {
		t.Errorf("unexpected checks %+v", checks)
	}
}

func TestApp_AlertIsPersistedNotifiedAndReported(t *testing.T) {
	cfg := fastScoring()
	s := newTestStore(t)
	notifier := &recordingNotifier{}
	a := New(Config{Scoring: cfg, Store: s, SessionID: "session-1", Notifier: notifier}, nil, nil)

	var reported []attention.AlertRecord
	a.OnAlert(func(rec attention.AlertRecord) {
		reported = append(reported, rec)
	})

	decisions := feed(a, cfg, 600, detector.FaceOptions{Yaw: 45, EAR: 0.15})

	if len(decisions) != 1 || decisions[0].State != attention.StateAlerted {
		t.Fatalf("unexpected decisions %+v", decisions)
	}
	rec := decisions[0].Alert
	if rec == nil {
		t.Fatal("decision carries no alert")
	}
	if math.Abs(rec.AvgAttention-0.45) > 0.01 {
		t.Errorf("AvgAttention = %v, want about 0.45", rec.AvgAttention)
	}
	if rec.Reason != "5min avg < threshold (50.0%)" {
		t.Errorf("Reason = %q", rec.Reason)
	}

	if len(reported) != 1 || reported[0] != *rec {
		t.Errorf("OnAlert got %v", reported)
	}
	if got := notifier.Alerts(); len(got) != 1 || got[0] != *rec {
		t.Errorf("notifier got %v", got)
	}

	stored, err := s.Alerts().ListBySession("session-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(stored) != 1 || stored[0].PersonID != rec.PersonID || stored[0].Reason != rec.Reason {
		t.Errorf("unexpected stored alerts %+v", stored)
	}

	views := a.Snapshot()
	if len(views) != 1 {
		t.Fatalf("Snapshot() has %d views, want 1", len(views))
	}
	if !views[0].AlertFlag || !views[0].Indicator || views[0].Label != attention.AlertLabel {
		t.Errorf("view does not show the alert: %+v", views[0])
	}

	history, ok := a.AlertHistory(rec.PersonID)
	if !ok || len(history) != 1 {
		t.Errorf("AlertHistory() = %v, %v", history, ok)
	}
}

func TestApp_WithoutStorePersistsNothing(t *testing.T) {
	cfg := fastScoring()
	a := New(Config{Scoring: cfg}, nil, nil)

	decisions := feed(a, cfg, 600, detector.FaceOptions{Yaw: 45, EAR: 0.15})
	if len(decisions) != 1 || decisions[0].Alert == nil {
		t.Fatalf("unexpected decisions %+v", decisions)
	}
}

func TestApp_TrackTimeoutEvicts(t *testing.T) {
	cfg := fastScoring()
	a := New(Config{Scoring: cfg, TrackTimeout: 2 * time.Second}, nil, nil)

	a.ProcessObservation(t0, detector.SyntheticObservation(detector.FaceOptions{}))
	if a.Registry().Len() != 1 {
		t.Fatal("expected one track")
	}

	for i := 1; i <= 4; i++ {
		a.ProcessObservation(t0.Add(time.Duration(i)*cfg.FramePeriod()), nil)
	}
	if a.Registry().Len() != 1 {
		t.Error("track evicted before the timeout")
	}

	a.ProcessObservation(t0.Add(2500*time.Millisecond), nil)
	if a.Registry().Len() != 0 {
		t.Error("track should be evicted after the timeout")
	}
}

func TestApp_ClockStepBackStillJudgesAbsence(t *testing.T) {
	cfg := fastScoring()
	a := New(Config{Scoring: cfg}, nil, nil)

	for i := 0; i < 599; i++ {
		a.ProcessObservation(t0.Add(time.Duration(i)*cfg.FramePeriod()), detector.SyntheticObservation(detector.FaceOptions{}))
	}

	back := t0.Add(-time.Hour)
	var decisions []attention.Decision
	for i := 0; i <= 600; i++ {
		decisions = append(decisions, a.ProcessObservation(back.Add(time.Duration(i)*cfg.FramePeriod()), nil)...)
	}

	if len(decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(decisions))
	}
	d := decisions[0]
	if d.State != attention.StateInsufficientData {
		t.Errorf("State = %v, want insufficient_data", d.State)
	}
	if d.Stats.PresencePct != 0 {
		t.Errorf("PresencePct = %v, want 0", d.Stats.PresencePct)
	}
}

func TestApp_SubjectLeavingAndReturningKeepsOneTrack(t *testing.T) {
	cfg := fastScoring()
	a := New(Config{Scoring: cfg}, nil, nil)

	frame := 0
	for visit := 0; visit < 5; visit++ {
		face := detector.FaceOptions{CenterX: 0.2 + 0.15*float64(visit), CenterY: 0.5}
		for i := 0; i < 30; i++ {
			a.ProcessObservation(t0.Add(time.Duration(frame)*cfg.FramePeriod()), detector.SyntheticObservation(face))
			frame++
		}
		for i := 0; i < 30; i++ {
			a.ProcessObservation(t0.Add(time.Duration(frame)*cfg.FramePeriod()), nil)
			frame++
		}
	}

	if n := a.Registry().Len(); n != 1 {
		t.Fatalf("Registry().Len() = %d, want 1", n)
	}
	views := a.Snapshot()
	if got := views[0].Long.PresencePct; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("long presence = %v, want 0.5", got)
	}
}

func TestApp_ResumeRestartsCheckSchedule(t *testing.T) {
	cfg := fastScoring()
	a := New(Config{Scoring: cfg}, nil, nil)

	for i := 0; i < 100; i++ {
		a.ProcessObservation(t0.Add(time.Duration(i)*cfg.FramePeriod()), detector.SyntheticObservation(detector.FaceOptions{}))
	}

	a.SetEnabled(false)
	a.SetEnabled(true)

	resumed := t0.Add(time.Hour)
	if d := a.ProcessObservation(resumed, detector.SyntheticObservation(detector.FaceOptions{})); d != nil {
		t.Fatalf("check ran on the first frame after resume: %+v", d)
	}

	var decisions []attention.Decision
	for i := 1; i <= 600; i++ {
		decisions = append(decisions, a.ProcessObservation(resumed.Add(time.Duration(i)*cfg.FramePeriod()), detector.SyntheticObservation(detector.FaceOptions{}))...)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions one interval after resume, want 1", len(decisions))
	}
	if decisions[0].Stats.Samples != 600 {
		t.Errorf("Samples = %d, want 600 post-resume frames", decisions[0].Stats.Samples)
	}
}

func TestApp_ProcessFrame(t *testing.T) {
	cfg := config.DefaultScoring()
	det := detector.NewMockDetector()
	det.SetObservation(detector.SyntheticObservation(detector.FaceOptions{}))
	a := New(Config{Scoring: cfg}, nil, det)

	var frames int
	a.OnFrame(func(ts time.Time, views []attention.TrackView) {
		frames++
		if len(views) != 1 {
			t.Errorf("OnFrame got %d views, want 1", len(views))
		}
	})

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	a.ProcessFrame(t0, &frame)

	if frames != 1 {
		t.Errorf("OnFrame called %d times, want 1", frames)
	}
	buf, seq := a.LatestJPEG()
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if len(buf) < 2 || buf[0] != 0xff || buf[1] != 0xd8 {
		t.Error("latest frame is not a JPEG")
	}

	view, ok := a.Track(a.Snapshot()[0].ID)
	if !ok || view.EMAAttention < 0.95 {
		t.Errorf("Track() = %+v, %v", view, ok)
	}
}

func TestApp_ProcessFrameDetectionErrorIsAbsent(t *testing.T) {
	cfg := config.DefaultScoring()
	det := detector.NewMockDetector()
	det.SetObservation(detector.SyntheticObservation(detector.FaceOptions{}))
	a := New(Config{Scoring: cfg}, nil, det)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	a.ProcessFrame(t0, &frame)
	id := a.Snapshot()[0].ID

	det.SetError(errors.New("service crashed"))
	a.ProcessFrame(t0.Add(cfg.FramePeriod()), &frame)

	samples, ok := a.Samples(id, attention.Short)
	if !ok || len(samples) != 2 {
		t.Fatalf("Samples() = %v, %v", samples, ok)
	}
	if !samples[0].Present || samples[1].Present {
		t.Errorf("want present then absent, got %+v", samples)
	}
	if _, seq := a.LatestJPEG(); seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
}

func TestApp_StartWithoutSource(t *testing.T) {
	a := New(Config{Scoring: config.DefaultScoring()}, nil, nil)
	if err := a.Start(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Start() error = %v, want ErrNoSource", err)
	}
}

func TestApp_Pipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	cam := capture.NewBlankCamera(640, 480)
	det := detector.NewMockDetector()
	det.SetObservation(detector.SyntheticObservation(detector.FaceOptions{}))
	a := New(Config{Scoring: config.DefaultScoring()}, cam, det)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.Running() || !cam.IsOpen() {
		t.Fatal("pipeline should be running with the camera open")
	}
	if cam.FPS() != 15 {
		t.Errorf("camera FPS = %d, want 15", cam.FPS())
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, seq := a.LatestJPEG(); seq >= 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, seq := a.LatestJPEG(); seq < 3 {
		t.Fatalf("only %d frames published", seq)
	}
	if det.Calls() < 3 {
		t.Errorf("detector called %d times", det.Calls())
	}
	if a.Registry().Len() != 1 {
		t.Errorf("Registry().Len() = %d, want 1", a.Registry().Len())
	}

	a.Stop()
	if a.Running() || cam.IsOpen() {
		t.Error("Stop() should halt the pipeline and close the camera")
	}
	a.Stop()
}

func TestApp_PausedPipelineReadsNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test")
	}

	cam := capture.NewBlankCamera(320, 240)
	a := New(Config{Scoring: config.DefaultScoring()}, cam, detector.NewMockDetector())
	a.SetEnabled(false)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(250 * time.Millisecond)
	a.Stop()

	if cam.Reads() != 0 {
		t.Errorf("camera read %d frames while paused", cam.Reads())
	}
	if a.IsEnabled() {
		t.Error("IsEnabled() = true")
	}
}
