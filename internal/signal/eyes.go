package signal

import (
	"fmt"
	"math"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/detector"
)

const minEyeWidth = 1e-9

// EAR computes the eye aspect ratio of p1..p6:
// (|p2-p6| + |p3-p5|) / (2 |p1-p4|).
func EAR(eye [6]detector.Point2D) (float64, error) {
	horizontal := dist(eye[0], eye[3])
	if horizontal < minEyeWidth || math.IsNaN(horizontal) {
		return 0, fmt.Errorf("%w: eye corners coincide", ErrDegenerateGeometry)
	}
	v1 := dist(eye[1], eye[5])
	v2 := dist(eye[2], eye[4])
	ear := (v1 + v2) / (2 * horizontal)
	if math.IsNaN(ear) || math.IsInf(ear, 0) {
		return 0, fmt.Errorf("%w: non-finite eye aspect ratio", ErrDegenerateGeometry)
	}
	return ear, nil
}

// GazeOffset locates the iris centre (mean of the ring points) inside the
// bounding box of the eye and returns it as a signed offset in [-1,1] per
// axis, 0 being the box centre. An axis with zero extent yields 0. ok is
// false when there are no iris points.
func GazeOffset(eye [6]detector.Point2D, iris []detector.Point2D) (offset attention.Vec2, ok bool) {
	if len(iris) == 0 {
		return attention.Vec2{}, false
	}

	var c detector.Point2D
	for _, p := range iris {
		c.X += p.X
		c.Y += p.Y
	}
	c.X /= float64(len(iris))
	c.Y /= float64(len(iris))

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range eye {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	return attention.Vec2{
		X: axisOffset(c.X, minX, maxX),
		Y: axisOffset(c.Y, minY, maxY),
	}, true
}

func axisOffset(v, lo, hi float64) float64 {
	span := hi - lo
	if span < minEyeWidth || math.IsNaN(span) {
		return 0
	}
	return attention.Clamp(2*(v-lo)/span-1, -1, 1)
}

func dist(a, b detector.Point2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
