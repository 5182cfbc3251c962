package signal

import (
	"math"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/log"
)

// Extractor converts detector observations into attention.FrameSignals.
// Any signal that cannot be measured falls back to its neutral value and the
// cause is logged at debug level.
type Extractor struct {
	cam *Camera
	cfg config.Scoring
}

// NewExtractor creates an extractor that solves pose with cam.
func NewExtractor(cam *Camera, cfg config.Scoring) *Extractor {
	return &Extractor{cam: cam, cfg: cfg}
}

// Camera returns the camera used for pose solves.
func (e *Extractor) Camera() *Camera { return e.cam }

// Extract measures the face in obs. ok is false when obs has no face.
func (e *Extractor) Extract(obs *detector.Observation) (sig attention.FrameSignals, ok bool) {
	if !obs.FacePresent() {
		return attention.FrameSignals{}, false
	}
	face := obs.Face

	sig.FaceBox = face.Box.Pixels(obs.Width, obs.Height)

	pose, err := SolvePose(e.cam, face.Pose)
	if err != nil {
		log.Debug("head pose unavailable, using neutral pose", "error", err)
		pose = attention.Pose{}
	}
	sig.Pose = pose

	sig.EAR = e.ear(face)

	if math.Abs(pose.Yaw) <= e.cfg.GazeYawLimit {
		if off, found := GazeOffset(face.LeftEye, face.LeftIris()); found {
			sig.Gaze = off
		}
	}

	sig.HandNear = HandNearFace(sig.FaceBox, obs.Hands, obs.Width, obs.Height, e.cfg.HandNearFaceDist)

	return sig, true
}

// ear averages both eyes; an eye whose corners coincide counts as open.
func (e *Extractor) ear(face *detector.FaceLandmarks) float64 {
	var sum float64
	for _, eye := range [][6]detector.Point2D{face.LeftEye, face.RightEye} {
		v, err := EAR(eye)
		if err != nil {
			log.Debug("eye aspect ratio unavailable, treating eye as open", "error", err)
			v = e.cfg.EAROpen
		}
		sum += v
	}
	return sum / 2
}
