package pipeline

import (
	"fmt"

	"github.com/dunamismax/rasterflow/internal/compositor"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/geometry"
	"github.com/dunamismax/rasterflow/internal/kernel"
	"github.com/dunamismax/rasterflow/internal/raster"
)

// Operation is one step of a pipeline. Every operation except Encode is also
// a RasterOperation.
type Operation interface {
	Name() string
}

// RasterOperation maps a buffer to a new buffer and never mutates its input.
type RasterOperation interface {
	Operation
	Apply(src raster.Buffer) (raster.Buffer, error)
}

type Rotate struct {
	DegreesClockwise float64
}

func (Rotate) Name() string { return domain.OpRotate }

func (o Rotate) Apply(src raster.Buffer) (raster.Buffer, error) {
	return geometry.Rotate(src, o.DegreesClockwise)
}

type Flip struct {
	Axis geometry.Axis
}

func (Flip) Name() string { return domain.OpFlip }

func (o Flip) Apply(src raster.Buffer) (raster.Buffer, error) {
	return geometry.Flip(src, o.Axis)
}

type Crop struct {
	X, Y, Width, Height int
}

func (Crop) Name() string { return domain.OpCrop }

func (o Crop) Apply(src raster.Buffer) (raster.Buffer, error) {
	return geometry.Crop(src, o.X, o.Y, o.Width, o.Height)
}

type Resize struct {
	Width, Height int
	Mode          geometry.ResizeMode
}

func (Resize) Name() string { return domain.OpResize }

func (o Resize) Apply(src raster.Buffer) (raster.Buffer, error) {
	return geometry.Resize(src, o.Width, o.Height, o.Mode)
}

type ColorAdjust kernel.Adjustments

func (ColorAdjust) Name() string { return domain.OpAdjust }

func (o ColorAdjust) Apply(src raster.Buffer) (raster.Buffer, error) {
	return kernel.Adjust(src, kernel.Adjustments(o))
}

type Pixelate struct {
	BlockSizePx int
}

func (Pixelate) Name() string { return domain.OpPixelate }

func (o Pixelate) Apply(src raster.Buffer) (raster.Buffer, error) {
	return kernel.Pixelate(src, o.BlockSizePx)
}

type Watermark compositor.Watermark

func (Watermark) Name() string { return domain.OpWatermark }

func (o Watermark) Apply(src raster.Buffer) (raster.Buffer, error) {
	return compositor.DrawWatermark(src, compositor.Watermark(o))
}

type Caption compositor.Caption

func (Caption) Name() string { return domain.OpCaption }

func (o Caption) Apply(src raster.Buffer) (raster.Buffer, error) {
	return compositor.DrawCaption(src, compositor.Caption(o))
}

// Encode is the terminal operation. It turns the buffer into bytes, so
// nothing may follow it.
type Encode struct {
	Format  encoder.Format
	Quality float64
}

func (Encode) Name() string { return domain.OpEncode }

func (o Encode) Encode(src raster.Buffer) ([]byte, error) {
	return encoder.Encode(src, o.Format, o.Quality)
}

func (o Encode) String() string {
	if !o.Format.Lossy() {
		return fmt.Sprintf("encode(%s)", o.Format)
	}
	return fmt.Sprintf("encode(%s, q=%.2f)", o.Format, o.Quality)
}
