package attention

import (
	"image"
	"math"
	"time"

	"github.com/ayusman/drishti/internal/config"
)

// AlertLabel is the text renderers show while a track's indicator is on.
const AlertLabel = "DISTRACTION ALERT"

// TimestampLayout formats alert timestamps as ISO-8601 UTC.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Pose is a head orientation in degrees.
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Vec2 is a normalized 2D offset.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// FrameSignals are the per-frame measurements for one detected face.
// Signals that could not be measured carry their neutral value: zero pose,
// zero gaze offset, an open-eye EAR and no hand near.
type FrameSignals struct {
	FaceBox  image.Rectangle
	Pose     Pose
	EAR      float64
	Gaze     Vec2
	HandNear bool
}

// AlertRecord is one entry of a track's alert history.
type AlertRecord struct {
	At           time.Time `json:"at"`
	PersonID     string    `json:"person_id"`
	AvgAttention float64   `json:"avg_attention"`
	PresencePct  float64   `json:"presence_pct"`
	Reason       string    `json:"reason"`
}

// Timestamp returns At in UTC using TimestampLayout.
func (a AlertRecord) Timestamp() string {
	return a.At.UTC().Format(TimestampLayout)
}

// Track is the scoring state of one subject.
type Track struct {
	ID       string
	LastSeen time.Time
	FaceBox  image.Rectangle // pixels

	Pose             Pose
	EAR              float64
	Gaze             Vec2
	HandNearDuration time.Duration
	EyesClosedFor    time.Duration

	HeadScore float64
	EyeScore  float64
	GazeScore float64
	HandScore float64

	FrameAttention float64
	EMAAttention   float64

	windows [numHorizons]*Window

	AlertFlag    bool
	AlertCount   int
	AlertHistory []AlertRecord
	RedBoxUntil  time.Time // zero when no visual alert is pending

	emaSeeded bool
}

// NewTrack creates an empty track with windows sized for cfg.FPS.
// Sub-scores start neutral.
func NewTrack(id string, cfg config.Scoring) *Track {
	t := &Track{
		ID:        id,
		HeadScore: 1,
		EyeScore:  1,
		GazeScore: 1,
		HandScore: 1,
	}
	for _, h := range Horizons {
		t.windows[h] = NewWindow(h.Capacity(cfg.FPS))
	}
	return t
}

// Window returns the sliding window for h.
func (t *Track) Window(h Horizon) *Window {
	return t.windows[h]
}

// Stats returns the statistics of the window for h, including FocusedPct.
func (t *Track) Stats(h Horizon, cfg config.Scoring) Stats {
	return t.windows[h].StatsWithFocus(cfg.FrameFocusThreshold)
}

// Observe applies one frame in which this track's face was detected.
func (t *Track) Observe(ts time.Time, sig FrameSignals, cfg config.Scoring) {
	t.FaceBox = sig.FaceBox
	t.Pose = sig.Pose
	t.EAR = sig.EAR
	t.Gaze = sig.Gaze

	t.HeadScore = HeadScore(sig.Pose.Yaw, cfg)
	t.EyeScore = EyeScore(sig.EAR, cfg)
	t.GazeScore = GazeScore(sig.Gaze.Norm(), cfg)
	t.UpdateHand(sig.HandNear, cfg)
	t.HandScore = HandScore(t.HandNearDuration, cfg)

	t.FrameAttention = Fuse(cfg.Weights, t.HeadScore, t.GazeScore, t.EyeScore, t.HandScore)

	if !t.emaSeeded {
		t.EMAAttention = t.FrameAttention
		t.emaSeeded = true
	} else {
		t.EMAAttention = clamp01(cfg.EMAAlpha*t.FrameAttention + (1-cfg.EMAAlpha)*t.EMAAttention)
	}

	if sig.EAR < cfg.EARClosed {
		t.EyesClosedFor += cfg.FramePeriod()
	} else {
		t.EyesClosedFor = 0
	}

	t.push(Sample{At: ts, Attention: t.FrameAttention, Present: true})
	t.LastSeen = ts
}

// ObserveAbsent applies one frame in which this track's face was not seen.
// Hand duration decays; the smoothed score and last measurements are kept.
func (t *Track) ObserveAbsent(ts time.Time, cfg config.Scoring) {
	t.UpdateHand(false, cfg)
	t.push(Sample{At: ts, Attention: 0, Present: false})
}

// UpdateHand moves the hand-near-face duration by one frame period,
// up while near and down otherwise, floored at zero.
func (t *Track) UpdateHand(near bool, cfg config.Scoring) {
	step := cfg.FramePeriod()
	if near {
		t.HandNearDuration += step
		return
	}
	t.HandNearDuration -= step
	if t.HandNearDuration < 0 {
		t.HandNearDuration = 0
	}
}

// Indicator reports whether renderers should show the alert at now.
func (t *Track) Indicator(now time.Time) bool {
	return t.AlertFlag || now.Before(t.RedBoxUntil)
}

// Drowsy reports whether the eyes have been closed for at least
// ClosedSecondsForSleep.
func (t *Track) Drowsy(cfg config.Scoring) bool {
	return cfg.ClosedSecondsForSleep > 0 && t.EyesClosedFor >= cfg.ClosedSecondsForSleep
}

func (t *Track) push(s Sample) {
	for _, w := range t.windows {
		w.Push(s)
	}
}
