package attention

import (
	"image"
	"time"

	"github.com/ayusman/drishti/internal/config"
)

// Box is a pixel rectangle in JSON-friendly form.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoxOf converts an image.Rectangle.
func BoxOf(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect converts back to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// TrackView is a read-only copy of a track for renderers and the API.
type TrackView struct {
	ID       string    `json:"id"`
	LastSeen time.Time `json:"last_seen"`
	Box      Box       `json:"box"`

	Pose     Pose    `json:"pose"`
	EAR      float64 `json:"ear"`
	Gaze     Vec2    `json:"gaze"`
	HandNear float64 `json:"hand_near_seconds"`

	HeadScore      float64 `json:"head_score"`
	EyeScore       float64 `json:"eye_score"`
	GazeScore      float64 `json:"gaze_score"`
	HandScore      float64 `json:"hand_score"`
	FrameAttention float64 `json:"frame_attention"`
	EMAAttention   float64 `json:"ema_attention"`

	Indicator  bool   `json:"indicator"`
	Label      string `json:"label,omitempty"`
	Drowsy     bool   `json:"drowsy"`
	AlertFlag  bool   `json:"alert_flag"`
	AlertCount int    `json:"alert_count"`
	Alerts     int    `json:"alerts"`

	Short  Stats `json:"short"`
	Medium Stats `json:"medium"`
	Long   Stats `json:"long"`
}

// View copies the track state as seen at now.
func (t *Track) View(now time.Time, cfg config.Scoring) TrackView {
	v := TrackView{
		ID:       t.ID,
		LastSeen: t.LastSeen,
		Box:      BoxOf(t.FaceBox),

		Pose:     t.Pose,
		EAR:      t.EAR,
		Gaze:     t.Gaze,
		HandNear: t.HandNearDuration.Seconds(),

		HeadScore:      t.HeadScore,
		EyeScore:       t.EyeScore,
		GazeScore:      t.GazeScore,
		HandScore:      t.HandScore,
		FrameAttention: t.FrameAttention,
		EMAAttention:   t.EMAAttention,

		Indicator:  t.Indicator(now),
		Drowsy:     t.Drowsy(cfg),
		AlertFlag:  t.AlertFlag,
		AlertCount: t.AlertCount,
		Alerts:     len(t.AlertHistory),

		Short:  t.Stats(Short, cfg),
		Medium: t.Stats(Medium, cfg),
		Long:   t.Stats(Long, cfg),
	}
	if v.Indicator {
		v.Label = AlertLabel
	}
	return v
}
