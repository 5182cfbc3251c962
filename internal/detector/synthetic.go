package detector

import "math"

// FaceOptions describes a synthetic face for tests and demos.
// Zero values select the defaults noted on each field.
type FaceOptions struct {
	Width, Height int // frame size, default 640x480

	Yaw, Pitch, Roll float64 // degrees

	Distance         float64 // nose depth in model units, default 2500
	CenterX, CenterY float64 // normalized nose position, default 0.5, 0.5

	EAR          float64 // both eyes, default 0.30
	GazeX, GazeY float64 // iris offset within the eye box, -1..1
	NoIris       bool
}

const syntheticEyeWidth = 0.05 // normalized

func (o FaceOptions) withDefaults() FaceOptions {
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 480
	}
	if o.Distance <= 0 {
		o.Distance = 2500
	}
	if o.CenterX == 0 && o.CenterY == 0 {
		o.CenterX, o.CenterY = 0.5, 0.5
	}
	if o.EAR == 0 {
		o.EAR = 0.30
	}
	return o
}

// SyntheticObservation returns an observation of one synthetic face and the
// given hands.
func SyntheticObservation(opts FaceOptions, hands ...HandLandmarks) *Observation {
	o := opts.withDefaults()
	return &Observation{
		Width:  o.Width,
		Height: o.Height,
		Face:   SyntheticFace(opts),
		Hands:  hands,
	}
}

// SyntheticFace builds face landmarks by projecting FaceModel through the
// pinhole camera of a Width x Height frame (focal length = width, principal
// point at the centre) after rotating it by Yaw, Pitch and Roll.
func SyntheticFace(opts FaceOptions) *FaceLandmarks {
	o := opts.withDefaults()
	w, h := float64(o.Width), float64(o.Height)
	f := w
	cx, cy := w/2, h/2

	rot := EulerToMatrix(o.Yaw, o.Pitch, o.Roll)
	tz := o.Distance
	tx := (o.CenterX*w - cx) * tz / f
	ty := (o.CenterY*h - cy) * tz / f

	face := &FaceLandmarks{}
	for i, m := range FaceModel {
		// model frame (y up, z to viewer) to camera frame (y down, z forward)
		p := [3]float64{m.X, -m.Y, -m.Z}
		var c [3]float64
		for r := 0; r < 3; r++ {
			c[r] = rot[r][0]*p[0] + rot[r][1]*p[1] + rot[r][2]*p[2]
		}
		c[0] += tx
		c[1] += ty
		c[2] += tz
		face.Pose[i] = Point2D{
			X: (f*c[0]/c[2] + cx) / w,
			Y: (f*c[1]/c[2] + cy) / h,
		}
	}

	ew := syntheticEyeWidth
	eh := o.EAR * ew

	left := Point2D{X: face.Pose[PoseLeftEye].X + ew/2, Y: face.Pose[PoseLeftEye].Y}
	right := Point2D{X: face.Pose[PoseRightEye].X - ew/2, Y: face.Pose[PoseRightEye].Y}
	face.LeftEye = syntheticEye(left, ew, eh)
	face.RightEye = syntheticEye(right, ew, eh)

	if !o.NoIris {
		gx := clampUnit(o.GazeX)
		gy := clampUnit(o.GazeY)
		for _, c := range []Point2D{left, right} {
			ic := Point2D{X: c.X + gx*ew/2, Y: c.Y + gy*eh/2}
			face.Iris = append(face.Iris, irisRing(ic, ew/6)...)
		}
	}

	face.Box = boundingBox(face, 0.15)
	return face
}

// EulerToMatrix returns Rz(roll)·Ry(yaw)·Rx(pitch) for angles in degrees.
func EulerToMatrix(yaw, pitch, roll float64) [3][3]float64 {
	a := pitch * math.Pi / 180
	b := yaw * math.Pi / 180
	g := roll * math.Pi / 180

	sa, ca := math.Sincos(a)
	sb, cb := math.Sincos(b)
	sg, cg := math.Sincos(g)

	return [3][3]float64{
		{cg * cb, cg*sb*sa - sg*ca, cg*sb*ca + sg*sa},
		{sg * cb, sg*sb*sa + cg*ca, sg*sb*ca - cg*sa},
		{-sb, cb * sa, cb * ca},
	}
}

// HandAt returns a hand whose centroid is exactly (x, y) in normalized
// coordinates.
func HandAt(x, y float64) HandLandmarks {
	hand := HandLandmarks{Handedness: "Right", Score: 0.95}

	hand.Points[Wrist] = Point3D{X: 0, Y: 0.08}
	for finger := 0; finger < 5; finger++ {
		dx := -0.04 + 0.02*float64(finger)
		for joint := 0; joint < 4; joint++ {
			hand.Points[1+finger*4+joint] = Point3D{
				X: dx,
				Y: 0.04 - 0.025*float64(joint),
				Z: -0.01 * float64(joint),
			}
		}
	}

	c := hand.Centroid()
	for i := range hand.Points {
		hand.Points[i].X += x - c.X
		hand.Points[i].Y += y - c.Y
	}
	return hand
}

// syntheticEye lays out p1..p6 around c with the given width and lid gap,
// so the eye aspect ratio is gap / width.
func syntheticEye(c Point2D, width, gap float64) [6]Point2D {
	x1 := c.X - width/6
	x2 := c.X + width/6
	return [6]Point2D{
		{X: c.X - width/2, Y: c.Y},
		{X: x1, Y: c.Y - gap/2},
		{X: x2, Y: c.Y - gap/2},
		{X: c.X + width/2, Y: c.Y},
		{X: x2, Y: c.Y + gap/2},
		{X: x1, Y: c.Y + gap/2},
	}
}

func irisRing(c Point2D, r float64) []Point2D {
	return []Point2D{
		{X: c.X + r, Y: c.Y},
		{X: c.X, Y: c.Y - r},
		{X: c.X - r, Y: c.Y},
		{X: c.X, Y: c.Y + r},
	}
}

func boundingBox(face *FaceLandmarks, pad float64) Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	visit := func(p Point2D) {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	for _, p := range face.Pose {
		visit(p)
	}
	for _, p := range face.LeftEye {
		visit(p)
	}
	for _, p := range face.RightEye {
		visit(p)
	}

	w, h := maxX-minX, maxY-minY
	return Rect{
		X:      minX - w*pad,
		Y:      minY - h*pad,
		Width:  w * (1 + 2*pad),
		Height: h * (1 + 2*pad),
	}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
