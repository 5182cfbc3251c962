package detector

import (
	"errors"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

const epsilon = 1e-9

func TestHandLandmarks_Centroid(t *testing.T) {
	var hand HandLandmarks
	for i := 0; i < NumLandmarks; i++ {
		hand.Points[i] = Point3D{X: float64(i), Y: 2 * float64(i), Z: 5}
	}

	c := hand.Centroid()
	if math.Abs(c.X-10) > epsilon || math.Abs(c.Y-20) > epsilon {
		t.Errorf("expected centroid (10, 20), got (%f, %f)", c.X, c.Y)
	}
}

func TestHandAt(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
	}{
		{"centre", 0.5, 0.5},
		{"top left", 0.1, 0.2},
		{"bottom right", 0.9, 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := HandAt(tt.x, tt.y)
			c := hand.Centroid()
			if math.Abs(c.X-tt.x) > epsilon || math.Abs(c.Y-tt.y) > epsilon {
				t.Errorf("expected centroid (%f, %f), got (%f, %f)", tt.x, tt.y, c.X, c.Y)
			}
			if hand.Handedness != "Right" {
				t.Errorf("expected handedness Right, got %s", hand.Handedness)
			}
		})
	}
}

func TestRect_Pixels(t *testing.T) {
	r := Rect{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25}

	got := r.Pixels(640, 480)
	want := image.Rect(160, 240, 480, 360)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestObservation_FacePresent(t *testing.T) {
	var nilObs *Observation
	if nilObs.FacePresent() {
		t.Error("nil observation should not report a face")
	}
	if (&Observation{}).FacePresent() {
		t.Error("empty observation should not report a face")
	}
	if !(&Observation{Face: &FaceLandmarks{}}).FacePresent() {
		t.Error("observation with a face should report it")
	}
}

func TestFaceLandmarks_LeftIris(t *testing.T) {
	t.Run("no iris", func(t *testing.T) {
		f := &FaceLandmarks{}
		if f.LeftIris() != nil {
			t.Error("expected nil left iris")
		}
	})

	t.Run("two rings", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{})
		if got := len(f.LeftIris()); got != IrisRingPoints {
			t.Errorf("expected %d left iris points, got %d", IrisRingPoints, got)
		}
		if len(f.Iris) != 2*IrisRingPoints {
			t.Errorf("expected %d iris points, got %d", 2*IrisRingPoints, len(f.Iris))
		}
	})

	t.Run("short ring", func(t *testing.T) {
		f := &FaceLandmarks{Iris: []Point2D{{X: 0.4, Y: 0.4}}}
		if got := len(f.LeftIris()); got != 1 {
			t.Errorf("expected 1 point, got %d", got)
		}
	})
}

func TestSyntheticFace(t *testing.T) {
	t.Run("frontal nose at centre", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{})
		nose := f.Pose[PoseNose]
		if math.Abs(nose.X-0.5) > epsilon || math.Abs(nose.Y-0.5) > epsilon {
			t.Errorf("expected nose at (0.5, 0.5), got (%f, %f)", nose.X, nose.Y)
		}
	})

	t.Run("frontal face is symmetric", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{})
		l, r := f.Pose[PoseLeftEye], f.Pose[PoseRightEye]
		if math.Abs((0.5-l.X)-(r.X-0.5)) > epsilon {
			t.Errorf("eyes not symmetric: left %f right %f", l.X, r.X)
		}
		if math.Abs(l.Y-r.Y) > epsilon {
			t.Errorf("eyes at different heights: %f vs %f", l.Y, r.Y)
		}
		if f.Pose[PoseChin].Y <= f.Pose[PoseNose].Y {
			t.Error("chin should be below the nose in image coordinates")
		}
		if l.Y >= f.Pose[PoseNose].Y {
			t.Error("eyes should be above the nose in image coordinates")
		}
	})

	t.Run("box contains landmarks", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{Yaw: 20})
		for i, p := range f.Pose {
			if p.X < f.Box.X || p.X > f.Box.X+f.Box.Width || p.Y < f.Box.Y || p.Y > f.Box.Y+f.Box.Height {
				t.Errorf("pose point %d (%f, %f) outside box %+v", i, p.X, p.Y, f.Box)
			}
		}
	})

	t.Run("no iris", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{NoIris: true})
		if len(f.Iris) != 0 {
			t.Errorf("expected no iris points, got %d", len(f.Iris))
		}
	})

	t.Run("yaw shifts the nose towards an eye", func(t *testing.T) {
		f := SyntheticFace(FaceOptions{Yaw: 30})
		dl := math.Abs(f.Pose[PoseNose].X - f.Pose[PoseLeftEye].X)
		dr := math.Abs(f.Pose[PoseRightEye].X - f.Pose[PoseNose].X)
		if math.Abs(dl-dr) < 1e-3 {
			t.Errorf("expected asymmetric eye distances under yaw, got %f and %f", dl, dr)
		}
	})
}

func TestEulerToMatrix_Orthonormal(t *testing.T) {
	r := EulerToMatrix(33, -12, 7)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += r[i][k] * r[j][k]
			}
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > epsilon {
				t.Errorf("row %d . row %d = %f, want %f", i, j, dot, want)
			}
		}
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("no face", func(t *testing.T) {
		obs, err := parseResponse([]byte(`{"face":null,"hands":[]}`), 640, 480)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obs.FacePresent() {
			t.Error("expected no face")
		}
		if obs.Width != 640 || obs.Height != 480 {
			t.Errorf("expected 640x480, got %dx%d", obs.Width, obs.Height)
		}
	})

	t.Run("face and hand", func(t *testing.T) {
		line := `{"face":{"pose":[{"x":0.5,"y":0.5},{"x":0.5,"y":0.7},{"x":0.4,"y":0.4},{"x":0.6,"y":0.4},{"x":0.45,"y":0.6},{"x":0.55,"y":0.6}],` +
			`"left_eye":[{"x":0.38,"y":0.4},{"x":0.39,"y":0.39},{"x":0.41,"y":0.39},{"x":0.42,"y":0.4},{"x":0.41,"y":0.41},{"x":0.39,"y":0.41}],` +
			`"right_eye":[{"x":0.58,"y":0.4},{"x":0.59,"y":0.39},{"x":0.61,"y":0.39},{"x":0.62,"y":0.4},{"x":0.61,"y":0.41},{"x":0.59,"y":0.41}],` +
			`"iris":[{"x":0.4,"y":0.4}],"box":{"x":0.3,"y":0.3,"width":0.4,"height":0.5}},` +
			`"hands":[{"points":[{"x":0.1,"y":0.2,"z":0}],"handedness":"Left","score":0.8}]}`

		obs, err := parseResponse([]byte(line), 320, 240)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !obs.FacePresent() {
			t.Fatal("expected a face")
		}
		if obs.Face.Pose[PoseChin].Y != 0.7 {
			t.Errorf("expected chin y 0.7, got %f", obs.Face.Pose[PoseChin].Y)
		}
		if obs.Face.Box.Width != 0.4 {
			t.Errorf("expected box width 0.4, got %f", obs.Face.Box.Width)
		}
		if len(obs.Hands) != 1 || obs.Hands[0].Handedness != "Left" {
			t.Fatalf("expected one left hand, got %+v", obs.Hands)
		}
		if obs.Hands[0].Points[0].X != 0.1 {
			t.Errorf("expected first point x 0.1, got %f", obs.Hands[0].Points[0].X)
		}
	})

	t.Run("short pose", func(t *testing.T) {
		_, err := parseResponse([]byte(`{"face":{"pose":[{"x":0.5,"y":0.5}],"left_eye":[],"right_eye":[]}}`), 640, 480)
		if err == nil {
			t.Error("expected error for incomplete pose points")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := parseResponse([]byte(`not json`), 640, 480)
		if err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty observation by default", func(t *testing.T) {
		mock := NewMockDetector()
		obs, err := mock.Detect(nil)
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if obs == nil || obs.FacePresent() {
			t.Errorf("expected empty observation, got %+v", obs)
		}
		if mock.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", mock.Calls())
		}
	})

	t.Run("fills frame size", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetObservation(&Observation{Face: SyntheticFace(FaceOptions{})})

		frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		defer frame.Close()

		obs, err := mock.Detect(&frame)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obs.Width != 160 || obs.Height != 120 {
			t.Errorf("expected 160x120, got %dx%d", obs.Width, obs.Height)
		}
		if !obs.FacePresent() {
			t.Error("expected configured face")
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		_, err := mock.Detect(nil)
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		mock := NewMockDetector()
		if err := mock.Close(); err != nil {
			t.Errorf("expected nil error on Close, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestSyntheticObservation(t *testing.T) {
	obs := SyntheticObservation(FaceOptions{Width: 320, Height: 240}, HandAt(0.5, 0.6))
	if obs.Width != 320 || obs.Height != 240 {
		t.Errorf("expected 320x240, got %dx%d", obs.Width, obs.Height)
	}
	if !obs.FacePresent() {
		t.Error("expected a face")
	}
	if len(obs.Hands) != 1 {
		t.Errorf("expected one hand, got %d", len(obs.Hands))
	}
}
