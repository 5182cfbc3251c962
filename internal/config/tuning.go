package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const maxTuningFileSize = 1 * 1024 * 1024 // 1MB

// Tuning is the on-disk override format for Scoring. Every field is optional;
// omitted fields keep their DefaultScoring values. Durations use Go duration
// strings such as "300s" or "2s".
type Tuning struct {
	Weights *Weights `json:"weights,omitempty"`

	MaxYaw   *float64 `json:"max_yaw,omitempty"`
	MaxPitch *float64 `json:"max_pitch,omitempty"`

	EARClosed             *float64 `json:"ear_closed,omitempty"`
	EAROpen               *float64 `json:"ear_open,omitempty"`
	ClosedSecondsForSleep *string  `json:"closed_seconds_for_sleep,omitempty"`

	GazeYawLimit  *float64 `json:"gaze_yaw_limit,omitempty"`
	MaxGazeOffset *float64 `json:"max_gaze_offset,omitempty"`

	HandNearFaceDist      *float64 `json:"hand_near_face_dist,omitempty"`
	HandDurationThreshold *string  `json:"hand_duration_threshold,omitempty"`

	FrameFocusThreshold *float64 `json:"frame_focus_threshold,omitempty"`
	EMAAlpha            *float64 `json:"ema_alpha,omitempty"`
	FPS                 *float64 `json:"fps,omitempty"`

	AlertCheckInterval              *string  `json:"alert_check_interval,omitempty"`
	AlertThresholdPct               *float64 `json:"alert_threshold_pct,omitempty"`
	FacePresenceMinPct              *float64 `json:"face_presence_min_pct,omitempty"`
	ConsecutiveAlertWindowsRequired *int     `json:"consecutive_alert_windows_required,omitempty"`

	RedBoxDuration *string `json:"red_box_duration,omitempty"`
}

// LoadScoring reads a JSON tuning file and applies it over DefaultScoring.
// The file must have a .json extension and be under 1MB. The merged result
// is validated before it is returned.
func LoadScoring(path string) (Scoring, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Scoring{}, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Scoring{}, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	if info.Size() > maxTuningFileSize {
		return Scoring{}, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxTuningFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Scoring{}, fmt.Errorf("failed to read tuning file: %w", err)
	}

	var t Tuning
	if err := json.Unmarshal(data, &t); err != nil {
		return Scoring{}, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}

	cfg, err := t.Apply(DefaultScoring())
	if err != nil {
		return Scoring{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Scoring{}, err
	}
	return cfg, nil
}

// Apply returns base with every set field of t applied.
func (t Tuning) Apply(base Scoring) (Scoring, error) {
	cfg := base

	if t.Weights != nil {
		cfg.Weights = *t.Weights
	}
	setFloat(&cfg.MaxYaw, t.MaxYaw)
	setFloat(&cfg.MaxPitch, t.MaxPitch)
	setFloat(&cfg.EARClosed, t.EARClosed)
	setFloat(&cfg.EAROpen, t.EAROpen)
	setFloat(&cfg.GazeYawLimit, t.GazeYawLimit)
	setFloat(&cfg.MaxGazeOffset, t.MaxGazeOffset)
	setFloat(&cfg.HandNearFaceDist, t.HandNearFaceDist)
	setFloat(&cfg.FrameFocusThreshold, t.FrameFocusThreshold)
	setFloat(&cfg.EMAAlpha, t.EMAAlpha)
	setFloat(&cfg.FPS, t.FPS)
	setFloat(&cfg.AlertThresholdPct, t.AlertThresholdPct)
	setFloat(&cfg.FacePresenceMinPct, t.FacePresenceMinPct)
	if t.ConsecutiveAlertWindowsRequired != nil {
		cfg.ConsecutiveAlertWindowsRequired = *t.ConsecutiveAlertWindowsRequired
	}

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"closed_seconds_for_sleep", t.ClosedSecondsForSleep, &cfg.ClosedSecondsForSleep},
		{"hand_duration_threshold", t.HandDurationThreshold, &cfg.HandDurationThreshold},
		{"alert_check_interval", t.AlertCheckInterval, &cfg.AlertCheckInterval},
		{"red_box_duration", t.RedBoxDuration, &cfg.RedBoxDuration},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return Scoring{}, fmt.Errorf("%w: %s has invalid duration %q: %v", ErrInvalidConfig, d.name, *d.src, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
