package signal

import (
	"image"
	"math"

	"github.com/ayusman/drishti/internal/detector"
)

// HandNearFace reports whether any hand centroid lies within threshold face
// widths of the face box centre. Sizes are in pixels; a face box with no
// width never has a hand near it.
func HandNearFace(face image.Rectangle, hands []detector.HandLandmarks, width, height int, threshold float64) bool {
	faceW := float64(face.Dx())
	if faceW <= 0 || len(hands) == 0 {
		return false
	}

	fx := float64(face.Min.X) + faceW/2
	fy := float64(face.Min.Y) + float64(face.Dy())/2

	for i := range hands {
		c := hands[i].Centroid()
		hx := c.X * float64(width)
		hy := c.Y * float64(height)
		if math.Hypot(hx-fx, hy-fy)/faceW < threshold {
			return true
		}
	}
	return false
}
