// Package signal turns detected landmarks into the per-frame measurements
// the attention engine scores: head pose, eye aspect ratio, gaze offset and
// hand proximity.
package signal

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCameraNotFinalized is returned by pose solves before Finalize.
	ErrCameraNotFinalized = errors.New("camera intrinsics not finalized")
	// ErrCameraFinalized is returned by a second call to Finalize.
	ErrCameraFinalized = errors.New("camera intrinsics already finalized")
	// ErrInvalidFrameSize is returned by Finalize for a non-positive size.
	ErrInvalidFrameSize = errors.New("invalid frame size")
	// ErrDegenerateGeometry is returned when landmarks cannot support a solve.
	ErrDegenerateGeometry = errors.New("degenerate landmark geometry")
)

// Camera is a pinhole camera whose intrinsics are derived from the first
// frame size. It starts unfinalized and must be finalized exactly once.
type Camera struct {
	mu        sync.RWMutex
	finalized bool
	width     int
	height    int
	focal     float64
	cx, cy    float64
}

// NewCamera returns an unfinalized camera.
func NewCamera() *Camera {
	return &Camera{}
}

// Finalize fixes the intrinsics for a width x height frame: focal length
// equals the width and the principal point is the frame centre.
func (c *Camera) Finalize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, width, height)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finalized {
		return ErrCameraFinalized
	}
	c.width = width
	c.height = height
	c.focal = float64(width)
	c.cx = float64(width) / 2
	c.cy = float64(height) / 2
	c.finalized = true
	return nil
}

// Finalized reports whether Finalize has succeeded.
func (c *Camera) Finalized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalized
}

// Size returns the frame size the camera was finalized with.
func (c *Camera) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// Intrinsics returns the focal length and principal point in pixels.
func (c *Camera) Intrinsics() (focal, cx, cy float64, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.finalized {
		return 0, 0, 0, ErrCameraNotFinalized
	}
	return c.focal, c.cx, c.cy, nil
}
