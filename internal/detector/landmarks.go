// Package detector provides face and hand landmark detection for attention scoring.
package detector

import (
	"image"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbTip     = 4
	IndexMCP     = 5
	IndexTip     = 8
	MiddleMCP    = 9
	MiddleTip    = 12
	RingTip      = 16
	PinkyMCP     = 17
	PinkyTip     = 20
	NumLandmarks = 21
)

// Pose point order. These index FaceLandmarks.Pose and FaceModel.
const (
	PoseNose = iota
	PoseChin
	PoseLeftEye
	PoseRightEye
	PoseLeftMouth
	PoseRightMouth
	NumPosePoints
)

// Iris ring points per eye. FaceLandmarks.Iris holds the left ring first.
const IrisRingPoints = 4

// Point2D is a landmark in normalized image coordinates (0..1, y down).
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceModel is the canonical 3D face used for the head pose solve, in model
// units with y up and z towards the viewer, indexed by the Pose* constants.
var FaceModel = [NumPosePoints]Point3D{
	PoseNose:       {0, 0, 0},
	PoseChin:       {0, -330, -65},
	PoseLeftEye:    {-225, 170, -135},
	PoseRightEye:   {225, 170, -135},
	PoseLeftMouth:  {-150, -150, -125},
	PoseRightMouth: {150, -150, -125},
}

// Rect is a normalized bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pixels scales r to a frame of w by h pixels.
func (r Rect) Pixels(w, h int) image.Rectangle {
	fw, fh := float64(w), float64(h)
	return image.Rect(
		int(math.Round(r.X*fw)),
		int(math.Round(r.Y*fh)),
		int(math.Round((r.X+r.Width)*fw)),
		int(math.Round((r.Y+r.Height)*fh)),
	)
}

// FaceLandmarks are the landmarks of one detected face. Eye points follow the
// EAR order p1..p6: outer corner, two upper lid points, inner corner, two
// lower lid points.
type FaceLandmarks struct {
	Pose     [NumPosePoints]Point2D `json:"pose"`
	LeftEye  [6]Point2D             `json:"left_eye"`
	RightEye [6]Point2D             `json:"right_eye"`
	Iris     []Point2D              `json:"iris,omitempty"`
	Box      Rect                   `json:"box"`
}

// LeftIris returns the left iris ring, or nil when no iris was detected.
func (f *FaceLandmarks) LeftIris() []Point2D {
	if len(f.Iris) == 0 {
		return nil
	}
	if len(f.Iris) < IrisRingPoints {
		return f.Iris
	}
	return f.Iris[:IrisRingPoints]
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Centroid returns the mean x,y of all hand points.
func (h *HandLandmarks) Centroid() Point2D {
	var c Point2D
	for _, p := range h.Points {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= NumLandmarks
	c.Y /= NumLandmarks
	return c
}

// Observation is everything detected in one frame.
type Observation struct {
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Face   *FaceLandmarks  `json:"face,omitempty"`
	Hands  []HandLandmarks `json:"hands,omitempty"`
}

// FacePresent reports whether a face was detected.
func (o *Observation) FacePresent() bool {
	return o != nil && o.Face != nil
}
