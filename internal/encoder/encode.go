package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
)

// Quality maps a quality factor in [0, 1] to the 1..100 scale used by the
// lossy codecs.
func Quality(q float64) int {
	return max(1, int(math.Round(q*100)))
}

// Encode serializes buf in format f. quality must lie in [0, 1]; PNG is
// lossless and ignores it. JPEG has no alpha channel, so translucent pixels
// are flattened over black first.
func Encode(buf raster.Buffer, f Format, quality float64) ([]byte, error) {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return nil, fmt.Errorf("%w: quality must be within [0, 1], got %v", raster.ErrInvalidParameter, quality)
	}
	if buf.IsZero() {
		return nil, fmt.Errorf("%w: empty buffer", raster.ErrInvalidParameter)
	}

	var out bytes.Buffer
	switch f {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&out, buf.Image()); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&out, flatten(buf), &jpeg.Options{Quality: Quality(quality)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case WEBP:
		data, err := encodeWebP(buf, Quality(quality))
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", raster.ErrUnsupportedFormat, string(f))
	}
	return out.Bytes(), nil
}

// flatten composites buf over opaque black.
func flatten(buf raster.Buffer) *image.RGBA {
	dst := image.NewRGBA(buf.Bounds())
	src := buf.Pix()
	for i := 0; i < len(src); i += raster.BytesPerPixel {
		a := uint32(src[i+3])
		dst.Pix[i] = uint8((uint32(src[i])*a + 127) / 255)
		dst.Pix[i+1] = uint8((uint32(src[i+1])*a + 127) / 255)
		dst.Pix[i+2] = uint8((uint32(src[i+2])*a + 127) / 255)
		dst.Pix[i+3] = 0xff
	}
	return dst
}
