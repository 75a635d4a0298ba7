package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
	xdraw "golang.org/x/image/draw"
)

// Rotate turns src clockwise by deg degrees onto a canvas sized to the rotated
// bounding box. Uncovered corners are transparent.
func Rotate(src raster.Buffer, deg float64) (raster.Buffer, error) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return raster.Buffer{}, fmt.Errorf("%w: rotation angle must be finite", raster.ErrInvalidParameter)
	}

	switch quarterTurns(deg) {
	case 0:
		return src, nil
	case 1, 2, 3:
		return rotateQuarter(src, quarterTurns(deg)), nil
	}

	dw, dh, s2d := RotationTransform(src.Width(), src.Height(), deg)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.BiLinear.Transform(dst, s2d, src.Image(), src.Bounds(), xdraw.Src, nil)
	return raster.FromImage(dst)
}

func rotateQuarter(src raster.Buffer, turns int) raster.Buffer {
	w, h := src.Width(), src.Height()
	dw, dh := w, h
	if turns%2 == 1 {
		dw, dh = h, w
	}

	in := src.Pix()
	out := make([]byte, len(in))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch turns {
			case 1:
				sx, sy = y, h-1-x
			case 2:
				sx, sy = w-1-x, h-1-y
			default:
				sx, sy = w-1-y, x
			}
			si := src.Offset(sx, sy)
			di := (y*dw + x) * raster.BytesPerPixel
			copy(out[di:di+raster.BytesPerPixel], in[si:si+raster.BytesPerPixel])
		}
	}

	b, _ := raster.New(dw, dh, out)
	return b
}

// Flip mirrors src along axis. It is lossless.
func Flip(src raster.Buffer, axis Axis) (raster.Buffer, error) {
	if axis != Horizontal && axis != Vertical {
		return raster.Buffer{}, fmt.Errorf("%w: unknown flip axis %d", raster.ErrInvalidParameter, int(axis))
	}

	w, h := src.Width(), src.Height()
	in := src.Pix()
	out := make([]byte, len(in))
	rowLen := w * raster.BytesPerPixel

	if axis == Vertical {
		for y := 0; y < h; y++ {
			_, sy := FlipSource(0, y, w, h, axis)
			copy(out[y*rowLen:(y+1)*rowLen], in[sy*rowLen:(sy+1)*rowLen])
		}
		return raster.New(w, h, out)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, _ := FlipSource(x, y, w, h, axis)
			si := src.Offset(sx, y)
			di := src.Offset(x, y)
			copy(out[di:di+raster.BytesPerPixel], in[si:si+raster.BytesPerPixel])
		}
	}
	return raster.New(w, h, out)
}

// Crop copies the w x h rectangle at (x, y) out of src.
func Crop(src raster.Buffer, x, y, w, h int) (raster.Buffer, error) {
	rect, err := CropRect(src.Width(), src.Height(), x, y, w, h)
	if err != nil {
		return raster.Buffer{}, err
	}

	in := src.Pix()
	out := make([]byte, w*h*raster.BytesPerPixel)
	rowLen := w * raster.BytesPerPixel
	for row := 0; row < h; row++ {
		si := src.Offset(rect.Min.X, rect.Min.Y+row)
		copy(out[row*rowLen:(row+1)*rowLen], in[si:si+rowLen])
	}
	return raster.New(w, h, out)
}

// Resize scales src to w x h. FitPreserveAspect keeps the aspect ratio and
// centers the scaled image on a transparent w x h canvas.
func Resize(src raster.Buffer, w, h int, mode ResizeMode) (raster.Buffer, error) {
	if w <= 0 || h <= 0 {
		return raster.Buffer{}, fmt.Errorf("%w: resize target %dx%d must be positive", raster.ErrInvalidParameter, w, h)
	}

	var dr image.Rectangle
	switch mode {
	case Stretch:
		dr = image.Rect(0, 0, w, h)
	case FitPreserveAspect:
		dr = FitRect(src.Width(), src.Height(), w, h)
	default:
		return raster.Buffer{}, fmt.Errorf("%w: unknown resize mode %d", raster.ErrInvalidParameter, int(mode))
	}

	if dr.Dx() == w && dr.Dy() == h && w == src.Width() && h == src.Height() {
		return src, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if dr.Dx() == src.Width() && dr.Dy() == src.Height() {
		xdraw.Copy(dst, dr.Min, src.Image(), src.Bounds(), xdraw.Src, nil)
	} else {
		xdraw.BiLinear.Scale(dst, dr, src.Image(), src.Bounds(), xdraw.Src, nil)
	}
	return raster.FromImage(dst)
}
