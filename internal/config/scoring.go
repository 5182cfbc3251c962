// Package config holds the scoring constants and process settings for drishti.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// weightTolerance bounds how far the fusion weights may drift from 1.0.
const weightTolerance = 1e-6

// Weights are the fusion weights for the four sub-scores. They must sum to 1.
type Weights struct {
	Head float64 `json:"head"`
	Gaze float64 `json:"gaze"`
	Eye  float64 `json:"eye"`
	Hand float64 `json:"hand"`
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Head + w.Gaze + w.Eye + w.Hand
}

// Scoring holds every tunable constant used by signal extraction, fusion,
// windowing and alerting. A Scoring value is immutable once validated and is
// passed explicitly to each component.
type Scoring struct {
	Weights Weights

	// Head pose (degrees)
	MaxYaw   float64 // head score reaches 0 at this |yaw|
	MaxPitch float64 // recorded only

	// Eyes
	EARClosed             float64       // EAR below this scores 0
	EAROpen               float64       // EAR at or above this scores 1
	ClosedSecondsForSleep time.Duration // eyes closed this long marks the subject drowsy

	// Gaze
	GazeYawLimit  float64 // gaze is unreliable beyond this |yaw| (degrees)
	MaxGazeOffset float64 // normalized offset at which gaze scores 0

	// Hands
	HandNearFaceDist      float64       // normalized by face width
	HandDurationThreshold time.Duration // sustained proximity at which hand scores 0

	// Smoothing and buffering
	FrameFocusThreshold float64
	EMAAlpha            float64
	FPS                 float64

	// Alerting
	AlertCheckInterval              time.Duration
	AlertThresholdPct               float64 // percent, 0-100
	FacePresenceMinPct              float64 // fraction, 0-1
	ConsecutiveAlertWindowsRequired int

	// Visualization
	RedBoxDuration time.Duration
}

// DefaultScoring returns the calibrated defaults.
func DefaultScoring() Scoring {
	return Scoring{
		Weights: Weights{
			Head: 0.40,
			Gaze: 0.35,
			Eye:  0.15,
			Hand: 0.10,
		},

		MaxYaw:   45.0,
		MaxPitch: 15.0,

		EARClosed:             0.20,
		EAROpen:               0.25,
		ClosedSecondsForSleep: 2 * time.Second,

		GazeYawLimit:  15.0,
		MaxGazeOffset: 0.60,

		HandNearFaceDist:      0.6,
		HandDurationThreshold: 2 * time.Second,

		FrameFocusThreshold: 0.60,
		EMAAlpha:            0.30,
		FPS:                 15,

		AlertCheckInterval:              300 * time.Second,
		AlertThresholdPct:               50.0,
		FacePresenceMinPct:              0.80,
		ConsecutiveAlertWindowsRequired: 1,

		RedBoxDuration: 30 * time.Second,
	}
}

// FramePeriod is the duration one frame represents under the FPS assumption.
func (s Scoring) FramePeriod() time.Duration {
	if s.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / s.FPS)
}

// FrameRate is FPS rounded to whole frames per second, at least 1. It is
// the rate requested from the camera and used to pace the frame loop.
func (s Scoring) FrameRate() int {
	fps := int(math.Round(s.FPS))
	if fps < 1 {
		return 1
	}
	return fps
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate reports the first configuration violation found.
func (s Scoring) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"weights.head", s.Weights.Head},
		{"weights.gaze", s.Weights.Gaze},
		{"weights.eye", s.Weights.Eye},
		{"weights.hand", s.Weights.Hand},
		{"max yaw", s.MaxYaw},
		{"max pitch", s.MaxPitch},
		{"ear closed", s.EARClosed},
		{"ear open", s.EAROpen},
		{"gaze yaw limit", s.GazeYawLimit},
		{"max gaze offset", s.MaxGazeOffset},
		{"hand near-face distance", s.HandNearFaceDist},
		{"frame focus threshold", s.FrameFocusThreshold},
		{"ema alpha", s.EMAAlpha},
		{"fps", s.FPS},
		{"alert threshold", s.AlertThresholdPct},
		{"face presence minimum", s.FacePresenceMinPct},
	} {
		if !finite(f.value) {
			return fmt.Errorf("%w: %s must be a finite number, got %v", ErrInvalidConfig, f.name, f.value)
		}
	}

	w := s.Weights
	if w.Head < 0 || w.Gaze < 0 || w.Eye < 0 || w.Hand < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative, got %+v", ErrInvalidConfig, w)
	}
	if math.Abs(w.Sum()-1.0) > weightTolerance {
		return fmt.Errorf("%w: fusion weights must sum to 1.0, got %.6f", ErrInvalidConfig, w.Sum())
	}
	if s.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidConfig, s.FPS)
	}
	if s.EMAAlpha <= 0 || s.EMAAlpha > 1 {
		return fmt.Errorf("%w: ema alpha must be in (0,1], got %v", ErrInvalidConfig, s.EMAAlpha)
	}
	if s.MaxYaw <= 0 {
		return fmt.Errorf("%w: max yaw must be positive, got %v", ErrInvalidConfig, s.MaxYaw)
	}
	if s.EARClosed < 0 || s.EAROpen <= s.EARClosed {
		return fmt.Errorf("%w: ear thresholds must satisfy 0 <= closed < open, got closed=%v open=%v",
			ErrInvalidConfig, s.EARClosed, s.EAROpen)
	}
	if s.GazeYawLimit < 0 {
		return fmt.Errorf("%w: gaze yaw limit must not be negative, got %v", ErrInvalidConfig, s.GazeYawLimit)
	}
	if s.MaxGazeOffset <= 0 {
		return fmt.Errorf("%w: max gaze offset must be positive, got %v", ErrInvalidConfig, s.MaxGazeOffset)
	}
	if s.HandNearFaceDist <= 0 {
		return fmt.Errorf("%w: hand near-face distance must be positive, got %v", ErrInvalidConfig, s.HandNearFaceDist)
	}
	if s.HandDurationThreshold <= 0 {
		return fmt.Errorf("%w: hand duration threshold must be positive, got %v", ErrInvalidConfig, s.HandDurationThreshold)
	}
	if s.ClosedSecondsForSleep < 0 {
		return fmt.Errorf("%w: closed-eyes duration must not be negative, got %v", ErrInvalidConfig, s.ClosedSecondsForSleep)
	}
	if s.FrameFocusThreshold < 0 || s.FrameFocusThreshold > 1 {
		return fmt.Errorf("%w: frame focus threshold must be in [0,1], got %v", ErrInvalidConfig, s.FrameFocusThreshold)
	}
	if s.AlertCheckInterval <= 0 {
		return fmt.Errorf("%w: alert check interval must be positive, got %v", ErrInvalidConfig, s.AlertCheckInterval)
	}
	if s.AlertThresholdPct < 0 || s.AlertThresholdPct > 100 {
		return fmt.Errorf("%w: alert threshold must be in [0,100], got %v", ErrInvalidConfig, s.AlertThresholdPct)
	}
	if s.FacePresenceMinPct < 0 || s.FacePresenceMinPct > 1 {
		return fmt.Errorf("%w: face presence minimum must be a fraction in [0,1], got %v", ErrInvalidConfig, s.FacePresenceMinPct)
	}
	if s.ConsecutiveAlertWindowsRequired < 1 {
		return fmt.Errorf("%w: consecutive alert windows must be at least 1, got %d",
			ErrInvalidConfig, s.ConsecutiveAlertWindowsRequired)
	}
	if s.RedBoxDuration < 0 {
		return fmt.Errorf("%w: red box duration must not be negative, got %v", ErrInvalidConfig, s.RedBoxDuration)
	}
	return nil
}
