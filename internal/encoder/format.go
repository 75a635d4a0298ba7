// Package encoder serializes raster buffers to PNG, JPEG and WEBP and decodes
// uploaded bytes back into buffers.
package encoder

import (
	"fmt"
	"strings"

	"github.com/dunamismax/rasterflow/internal/raster"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WEBP Format = "webp"
)

// ParseFormat normalizes a format name. "jpg" is accepted as JPEG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "webp":
		return WEBP, nil
	default:
		return "", fmt.Errorf("%w: %q", raster.ErrUnsupportedFormat, s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case WEBP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func (f Format) Extension() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Lossy reports whether encoding in f loses information below quality 1.
func (f Format) Lossy() bool {
	return f == JPEG || f == WEBP
}
