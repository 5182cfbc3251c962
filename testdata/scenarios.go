// Package testdata provides scripted observation sequences for end-to-end
// tests of the attention pipeline.
package testdata

import (
	"time"

	"github.com/ayusman/drishti/internal/detector"
)

// Scenario is a subject held in one posture for a whole run.
type Scenario struct {
	Name string
	Face detector.FaceOptions

	// HandNear puts a hand on the nose for every present frame.
	HandNear bool

	// AbsentEvery drops the face on every n-th frame; 0 keeps it always.
	AbsentEvery int
}

// Frame is one scripted observation. Obs is nil for an absent frame.
type Frame struct {
	At  time.Time
	Obs *detector.Observation
}

// Observation returns the observation of one present frame.
func (s Scenario) Observation() *detector.Observation {
	if s.HandNear {
		return detector.SyntheticObservation(s.Face, detector.HandAt(0.5, 0.5))
	}
	return detector.SyntheticObservation(s.Face)
}

// Frames scripts n+1 frames starting at start, period apart.
func (s Scenario) Frames(start time.Time, period time.Duration, n int) []Frame {
	obs := s.Observation()
	frames := make([]Frame, 0, n+1)
	for i := 0; i <= n; i++ {
		f := Frame{At: start.Add(time.Duration(i) * period)}
		if s.AbsentEvery <= 0 || i%s.AbsentEvery != 0 {
			f.Obs = obs
		}
		frames = append(frames, f)
	}
	return frames
}

// Nominal is a subject looking straight at the camera with open eyes.
var Nominal = Scenario{Name: "nominal", Face: detector.FaceOptions{}}

// TurnedAway has the head turned to the yaw limit.
var TurnedAway = Scenario{Name: "turned away", Face: detector.FaceOptions{Yaw: 45}}

// EyesClosed keeps both eyes below the closed threshold.
var EyesClosed = Scenario{Name: "eyes closed", Face: detector.FaceOptions{EAR: 0.15}}

// Distracted is turned away with closed eyes and misses one frame in ten.
var Distracted = Scenario{
	Name:        "distracted",
	Face:        detector.FaceOptions{Yaw: 45, EAR: 0.15},
	AbsentEvery: 10,
}
