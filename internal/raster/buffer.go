// Package raster holds the immutable RGBA8 pixel buffer that every stage of
// the pipeline consumes and produces.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/clone"
)

// BytesPerPixel is the size of one straight-alpha RGBA8 pixel.
const BytesPerPixel = 4

// Buffer is a width x height grid of straight (non-premultiplied) RGBA8
// pixels stored row-major from the top-left corner.
//
// A Buffer is never mutated after construction. Every operation returns a new
// Buffer, so intermediate results can be kept around for previews.
type Buffer struct {
	width  int
	height int
	pix    []byte
}

// New builds a Buffer over pix. It takes ownership of pix; the caller must not
// modify the slice afterwards.
func New(width, height int, pix []byte) (Buffer, error) {
	if width <= 0 || height <= 0 {
		return Buffer{}, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidParameter, width, height)
	}
	if len(pix) != width*height*BytesPerPixel {
		return Buffer{}, fmt.Errorf("%w: pixel length %d does not match %dx%d", ErrInvalidParameter, len(pix), width, height)
	}
	return Buffer{width: width, height: height, pix: pix}, nil
}

// Blank returns a fully transparent buffer.
func Blank(width, height int) (Buffer, error) {
	if width <= 0 || height <= 0 {
		return Buffer{}, fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidParameter, width, height)
	}
	return New(width, height, make([]byte, width*height*BytesPerPixel))
}

// Filled returns a buffer where every pixel is c.
func Filled(width, height int, c Color) (Buffer, error) {
	b, err := Blank(width, height)
	if err != nil {
		return Buffer{}, err
	}
	for i := 0; i < len(b.pix); i += BytesPerPixel {
		b.pix[i], b.pix[i+1], b.pix[i+2], b.pix[i+3] = c.R, c.G, c.B, c.A
	}
	return b, nil
}

// FromImage converts a decoded image into a Buffer, normalizing the color
// model to straight RGBA8.
func FromImage(img image.Image) (Buffer, error) {
	if img == nil {
		return Buffer{}, fmt.Errorf("%w: nil image", ErrInvalidParameter)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return Buffer{}, fmt.Errorf("%w: empty image %v", ErrInvalidParameter, bounds)
	}

	pix := make([]byte, w*h*BytesPerPixel)
	switch src := img.(type) {
	case *image.NRGBA:
		copyRows(pix, src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), w, h)
	case *image.RGBA:
		copyRows(pix, src.Pix, src.Stride, src.PixOffset(bounds.Min.X, bounds.Min.Y), w, h)
		unpremultiply(pix)
	case *image.YCbCr, *image.Gray, *image.CMYK:
		// Opaque models: premultiplied and straight alpha are identical.
		rgba := clone.AsRGBA(src)
		copyRows(pix, rgba.Pix, rgba.Stride, 0, w, h)
	default:
		dst := &image.NRGBA{Pix: pix, Stride: w * BytesPerPixel, Rect: image.Rect(0, 0, w, h)}
		draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)
	}
	return New(w, h, pix)
}

func copyRows(dst, src []byte, stride, offset, w, h int) {
	rowLen := w * BytesPerPixel
	for y := 0; y < h; y++ {
		start := offset + y*stride
		copy(dst[y*rowLen:(y+1)*rowLen], src[start:start+rowLen])
	}
}

func unpremultiply(pix []byte) {
	for i := 0; i < len(pix); i += BytesPerPixel {
		a := uint32(pix[i+3])
		switch a {
		case 0xff:
		case 0:
			pix[i], pix[i+1], pix[i+2] = 0, 0, 0
		default:
			pix[i] = uint8((uint32(pix[i])*0xff + a/2) / a)
			pix[i+1] = uint8((uint32(pix[i+1])*0xff + a/2) / a)
			pix[i+2] = uint8((uint32(pix[i+2])*0xff + a/2) / a)
		}
	}
}

func (b Buffer) Width() int  { return b.width }
func (b Buffer) Height() int { return b.height }

// Bounds returns the buffer rectangle anchored at the origin.
func (b Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// ByteSize is the size of the pixel plane in bytes.
func (b Buffer) ByteSize() int { return len(b.pix) }

// IsZero reports whether b is the zero Buffer.
func (b Buffer) IsZero() bool { return b.pix == nil }

// Pix returns the pixel plane. The slice is shared and must be treated as
// read-only.
func (b Buffer) Pix() []byte { return b.pix }

// Offset returns the index of the first byte of pixel (x, y).
func (b Buffer) Offset(x, y int) int { return (y*b.width + x) * BytesPerPixel }

// At returns the color at (x, y). Coordinates outside the buffer yield the
// transparent color.
func (b Buffer) At(x, y int) Color {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return Color{}
	}
	i := b.Offset(x, y)
	return Color{R: b.pix[i], G: b.pix[i+1], B: b.pix[i+2], A: b.pix[i+3]}
}

// Clone returns a copy of the pixel plane that the caller may mutate before
// wrapping it with New.
func (b Buffer) Clone() []byte {
	out := make([]byte, len(b.pix))
	copy(out, b.pix)
	return out
}

// Image exposes the buffer as a read-only image.Image without copying.
func (b Buffer) Image() image.Image {
	return &image.NRGBA{Pix: b.pix, Stride: b.width * BytesPerPixel, Rect: b.Bounds()}
}

// Equal reports whether both buffers have the same dimensions and pixels.
func (b Buffer) Equal(o Buffer) bool {
	return b.width == o.width && b.height == o.height && bytes.Equal(b.pix, o.pix)
}

func (b Buffer) String() string {
	return fmt.Sprintf("raster.Buffer(%dx%d)", b.width, b.height)
}
