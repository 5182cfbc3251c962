package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/detector"
)

const (
	positMaxIter = 100
	positTol     = 1e-10
	minScale     = 1e-12
)

// poseModel is a rigid 3D model prepared for POSIT: points relative to the
// first one, in camera axes (x right, y down, z forward), and the
// pseudo-inverse of the relative point matrix.
type poseModel struct {
	rel  [][3]float64
	pinv *mat.Dense // 3 x (n-1)
}

var facePoseModel = mustPoseModel(detector.FaceModel[:])

func mustPoseModel(pts []detector.Point3D) poseModel {
	m, err := newPoseModel(pts)
	if err != nil {
		panic(err)
	}
	return m
}

func newPoseModel(pts []detector.Point3D) (poseModel, error) {
	n := len(pts)
	if n < 4 {
		return poseModel{}, fmt.Errorf("%w: need at least 4 model points, got %d", ErrDegenerateGeometry, n)
	}

	// Model y is up and z points to the viewer; negate both so a face
	// looking into the camera solves to the identity rotation.
	rel := make([][3]float64, n)
	for i, p := range pts {
		rel[i] = [3]float64{p.X - pts[0].X, -(p.Y - pts[0].Y), -(p.Z - pts[0].Z)}
	}

	a := mat.NewDense(n-1, 3, nil)
	for i := 1; i < n; i++ {
		a.SetRow(i-1, rel[i][:])
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return poseModel{}, fmt.Errorf("%w: model points are coplanar: %v", ErrDegenerateGeometry, err)
	}

	var pinv mat.Dense
	pinv.Mul(&inv, a.T())

	return poseModel{rel: rel, pinv: &pinv}, nil
}

// SolvePose estimates head orientation from the six pose landmarks
// (normalized coordinates, ordered as detector.FaceModel) using POSIT.
func SolvePose(cam *Camera, pts [detector.NumPosePoints]detector.Point2D) (attention.Pose, error) {
	focal, cx, cy, err := cam.Intrinsics()
	if err != nil {
		return attention.Pose{}, err
	}
	w, h := cam.Size()

	img := make([][2]float64, len(pts))
	for i, p := range pts {
		if !finite(p.X, p.Y) {
			return attention.Pose{}, fmt.Errorf("%w: non-finite landmark %d", ErrDegenerateGeometry, i)
		}
		img[i] = [2]float64{p.X*float64(w) - cx, p.Y*float64(h) - cy}
	}

	rot, err := facePoseModel.solve(img, focal)
	if err != nil {
		return attention.Pose{}, err
	}
	return eulerFromMatrix(rot), nil
}

// solve runs POSIT on centred pixel coordinates and returns the
// object-to-camera rotation.
func (m poseModel) solve(img [][2]float64, focal float64) (*mat.Dense, error) {
	n := len(m.rel)
	if len(img) != n {
		return nil, fmt.Errorf("%w: want %d image points, got %d", ErrDegenerateGeometry, n, len(img))
	}

	eps := make([]float64, n)
	xs := mat.NewVecDense(n-1, nil)
	ys := mat.NewVecDense(n-1, nil)

	var iv, jv mat.VecDense
	var r1, r2, r3 [3]float64

	for iter := 0; iter < positMaxIter; iter++ {
		for k := 1; k < n; k++ {
			xs.SetVec(k-1, img[k][0]*(1+eps[k])-img[0][0])
			ys.SetVec(k-1, img[k][1]*(1+eps[k])-img[0][1])
		}
		iv.MulVec(m.pinv, xs)
		jv.MulVec(m.pinv, ys)

		s1 := mat.Norm(&iv, 2)
		s2 := mat.Norm(&jv, 2)
		if s1 < minScale || s2 < minScale || !finite(s1) || !finite(s2) {
			return nil, fmt.Errorf("%w: image points do not span the model", ErrDegenerateGeometry)
		}

		for c := 0; c < 3; c++ {
			r1[c] = iv.AtVec(c) / s1
			r2[c] = jv.AtVec(c) / s2
		}
		r3 = cross(r1, r2)
		k3 := math.Sqrt(dot(r3, r3))
		if k3 < minScale {
			return nil, fmt.Errorf("%w: image axes are parallel", ErrDegenerateGeometry)
		}
		for c := range r3 {
			r3[c] /= k3
		}
		if !finite(r1[0], r1[1], r1[2], r2[0], r2[1], r2[2], r3[0], r3[1], r3[2]) {
			return nil, fmt.Errorf("%w: pose iteration diverged", ErrDegenerateGeometry)
		}

		tz := focal / ((s1 + s2) / 2)

		delta := 0.0
		for k := 1; k < n; k++ {
			e := dot(m.rel[k], r3) / tz
			if !finite(e) {
				return nil, fmt.Errorf("%w: pose iteration diverged", ErrDegenerateGeometry)
			}
			delta = math.Max(delta, math.Abs(e-eps[k]))
			eps[k] = e
		}
		if delta < positTol {
			break
		}
	}

	raw := mat.NewDense(3, 3, []float64{
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
		r3[0], r3[1], r3[2],
	})
	return nearestRotation(raw)
}

// nearestRotation projects m onto SO(3) with an SVD.
func nearestRotation(m *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, fmt.Errorf("%w: rotation SVD failed", ErrDegenerateGeometry)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var r mat.Dense
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	return &r, nil
}

// eulerFromMatrix decomposes R = Rz(roll)·Ry(yaw)·Rx(pitch), in degrees.
func eulerFromMatrix(r mat.Matrix) attention.Pose {
	const deg = 180 / math.Pi
	return attention.Pose{
		Yaw:   math.Atan2(-r.At(2, 0), math.Hypot(r.At(0, 0), r.At(1, 0))) * deg,
		Pitch: math.Atan2(r.At(2, 1), r.At(2, 2)) * deg,
		Roll:  math.Atan2(r.At(1, 0), r.At(0, 0)) * deg,
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
