// Package attention fuses per-frame visual signals into an attention score,
// keeps per-person sliding windows of that score and decides when sustained
// inattention should raise an alert.
//
// Nothing in this package blocks or touches pixels. Geometry is computed by
// internal/signal and handed over as FrameSignals.
package attention

import (
	"math"
	"time"

	"github.com/ayusman/drishti/internal/config"
)

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// Fuse combines the four sub-scores into one frame attention value.
func Fuse(w config.Weights, head, gaze, eye, hand float64) float64 {
	return clamp01(w.Head*clamp01(head) +
		w.Gaze*clamp01(gaze) +
		w.Eye*clamp01(eye) +
		w.Hand*clamp01(hand))
}

// HeadScore falls linearly from 1 at yaw 0 to 0 at |yaw| >= MaxYaw.
// Pitch and roll do not contribute.
func HeadScore(yaw float64, cfg config.Scoring) float64 {
	if cfg.MaxYaw <= 0 {
		return 1
	}
	return 1 - clamp01(math.Abs(yaw)/cfg.MaxYaw)
}

// EyeScore maps an eye aspect ratio to [0,1]: 0 below EARClosed, 1 at or
// above EAROpen, linear between.
func EyeScore(ear float64, cfg config.Scoring) float64 {
	switch {
	case math.IsNaN(ear):
		return 1
	case ear >= cfg.EAROpen:
		return 1
	case ear < cfg.EARClosed:
		return 0
	}
	span := cfg.EAROpen - cfg.EARClosed
	if span <= 0 {
		return 1
	}
	return clamp01((ear - cfg.EARClosed) / span)
}

// GazeScore falls linearly with the magnitude of the normalized gaze offset.
func GazeScore(offset float64, cfg config.Scoring) float64 {
	if cfg.MaxGazeOffset <= 0 || math.IsNaN(offset) {
		return 1
	}
	return clamp01(1 - math.Abs(offset)/cfg.MaxGazeOffset)
}

// HandScore falls linearly as sustained hand-near-face time approaches
// HandDurationThreshold.
func HandScore(d time.Duration, cfg config.Scoring) float64 {
	if cfg.HandDurationThreshold <= 0 {
		return 1
	}
	return 1 - clamp01(d.Seconds()/cfg.HandDurationThreshold.Seconds())
}
