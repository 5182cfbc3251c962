// Package overlay draws attention state onto video frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/drishti/internal/attention"
)

var (
	// Focused is the box colour of a track with no active alert.
	Focused = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// Alerted is the box colour while the alert indicator is on.
	Alerted = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	// Drowsy marks the drowsiness note.
	Drowsy = color.RGBA{R: 255, G: 165, B: 0, A: 0}
)

const (
	boxThickness  = 2
	textThickness = 2
	scoreScale    = 0.6
	labelScale    = 0.7
)

// ScoreText formats the smoothed attention as "Attn: NN%".
func ScoreText(v attention.TrackView) string {
	pct := int(math.Floor(attention.Clamp(v.EMAAttention, 0, 1) * 100))
	return fmt.Sprintf("Attn: %d%%", pct)
}

// ColorOf returns the box colour for v.
func ColorOf(v attention.TrackView) color.RGBA {
	if v.Indicator {
		return Alerted
	}
	return Focused
}

// Draw annotates img with one box per view. Views without a face box are
// skipped.
func Draw(img *gocv.Mat, views []attention.TrackView) {
	if img == nil || img.Empty() {
		return
	}
	for _, v := range views {
		DrawTrack(img, v)
	}
}

// DrawTrack draws the box, score line and, when the indicator is on, the
// alert label of a single track.
func DrawTrack(img *gocv.Mat, v attention.TrackView) {
	box := v.Box.Rect()
	if box.Empty() {
		return
	}
	c := ColorOf(v)

	gocv.Rectangle(img, box, c, boxThickness)

	scorePos := image.Pt(box.Min.X, box.Min.Y-10)
	if scorePos.Y < 15 {
		scorePos.Y = box.Max.Y + 45
	}
	gocv.PutText(img, ScoreText(v), scorePos, gocv.FontHersheySimplex, scoreScale, c, textThickness)

	if v.Label != "" {
		gocv.PutText(img, v.Label, image.Pt(box.Min.X, box.Max.Y+20), gocv.FontHersheySimplex, labelScale, c, textThickness)
	}
	if v.Drowsy {
		gocv.PutText(img, "DROWSY", image.Pt(box.Max.X+5, box.Min.Y+20), gocv.FontHersheySimplex, scoreScale, Drowsy, textThickness)
	}
}
