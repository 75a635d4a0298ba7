// Package geometry computes output dimensions and sampling rules for the
// geometric operations and applies them to raster buffers.
//
// Resampling is bilinear (golang.org/x/image/draw.BiLinear) everywhere a
// non-integer mapping is involved. Quarter-turn rotations, flips and crops
// are exact pixel permutations.
package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
	"golang.org/x/image/math/f64"
)

// snapEpsilon absorbs floating point noise so that e.g. a 90 degree rotation of
// 100x50 yields exactly 50x100.
const snapEpsilon = 1e-9

type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

func (a Axis) String() string {
	switch a {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

type ResizeMode int

const (
	Stretch ResizeMode = iota
	FitPreserveAspect
)

func (m ResizeMode) String() string {
	switch m {
	case Stretch:
		return "stretch"
	case FitPreserveAspect:
		return "fit"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// normalizeDegrees maps any finite angle into [0, 360).
func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360-snapEpsilon {
		deg = 0
	}
	return deg
}

// quarterTurns returns the number of clockwise quarter turns for deg, or -1
// when deg is not a multiple of 90.
func quarterTurns(deg float64) int {
	deg = normalizeDegrees(deg)
	q := math.Round(deg / 90)
	if math.Abs(deg-q*90) > snapEpsilon {
		return -1
	}
	return int(q) % 4
}

func sinCos(deg float64) (float64, float64) {
	switch quarterTurns(deg) {
	case 0:
		return 0, 1
	case 1:
		return 1, 0
	case 2:
		return 0, -1
	case 3:
		return -1, 0
	}
	return math.Sincos(normalizeDegrees(deg) * math.Pi / 180)
}

func ceilSnap(v float64) int {
	return int(math.Ceil(v - snapEpsilon))
}

// RotatedSize returns the bounding box of a w x h rectangle rotated by deg
// degrees, rounded up to whole pixels.
func RotatedSize(w, h int, deg float64) (int, int) {
	sin, cos := sinCos(deg)
	sin, cos = math.Abs(sin), math.Abs(cos)
	fw, fh := float64(w), float64(h)
	return max(1, ceilSnap(fw*cos+fh*sin)), max(1, ceilSnap(fw*sin+fh*cos))
}

// RotationTransform returns the destination size for a clockwise rotation of
// a w x h source and the source-to-destination affine map. The source is
// centered in the destination canvas; samplers invert the map to find the
// source position of each destination pixel.
func RotationTransform(w, h int, deg float64) (int, int, f64.Aff3) {
	dw, dh := RotatedSize(w, h, deg)
	sin, cos := sinCos(deg)

	cx, cy := float64(w)/2, float64(h)/2
	dcx, dcy := float64(dw)/2, float64(dh)/2

	// y grows downwards, so this matrix turns the image clockwise on screen.
	return dw, dh, f64.Aff3{
		cos, -sin, dcx - (cos*cx - sin*cy),
		sin, cos, dcy - (sin*cx + cos*cy),
	}
}

// Apply maps (x, y) through m.
func Apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

// FlipSource returns the source coordinate sampled for destination (x, y).
func FlipSource(x, y, w, h int, axis Axis) (int, int) {
	if axis == Horizontal {
		return w - 1 - x, y
	}
	return x, h - 1 - y
}

// CropRect validates a crop request against a srcW x srcH source and returns
// the rectangle to copy.
func CropRect(srcW, srcH, x, y, w, h int) (image.Rectangle, error) {
	if x < 0 || y < 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: crop %d,%d %dx%d must have a non-negative origin and positive size", raster.ErrInvalidParameter, x, y, w, h)
	}
	rect := image.Rect(x, y, x+w, y+h)
	if !rect.In(image.Rect(0, 0, srcW, srcH)) {
		return image.Rectangle{}, fmt.Errorf("%w: crop rectangle %v exceeds source %dx%d", raster.ErrOutOfBounds, rect, srcW, srcH)
	}
	return rect, nil
}

// FitRect returns where a srcW x srcH image lands when scaled uniformly to fit
// inside dstW x dstH and centered.
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	scale := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := clamp(int(math.Round(float64(srcW)*scale)), 1, dstW)
	h := clamp(int(math.Round(float64(srcH)*scale)), 1, dstH)
	x0 := (dstW - w) / 2
	y0 := (dstH - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
