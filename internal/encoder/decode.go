package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/h2non/filetype"
	"golang.org/x/image/webp"
)

// Sniff identifies the image format of data from its magic bytes.
func Sniff(data []byte) (Format, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", fmt.Errorf("%w: unrecognized image data", raster.ErrUnsupportedFormat)
	}
	f, err := ParseFormat(kind.Extension)
	if err != nil {
		return "", fmt.Errorf("%w: %s", raster.ErrUnsupportedFormat, kind.MIME.Value)
	}
	return f, nil
}

// Decode turns encoded PNG, JPEG or WEBP bytes into a buffer.
func Decode(data []byte) (raster.Buffer, Format, error) {
	f, err := Sniff(data)
	if err != nil {
		return raster.Buffer{}, "", err
	}

	var img image.Image
	r := bytes.NewReader(data)
	switch f {
	case PNG:
		img, err = png.Decode(r)
	case JPEG:
		img, err = jpeg.Decode(r)
	case WEBP:
		img, err = webp.Decode(r)
	}
	if err != nil {
		return raster.Buffer{}, "", fmt.Errorf("decode %s: %w", f, err)
	}

	buf, err := raster.FromImage(img)
	if err != nil {
		return raster.Buffer{}, "", err
	}
	return buf, f, nil
}
