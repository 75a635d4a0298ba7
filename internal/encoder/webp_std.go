//go:build !govips || !cgo

package encoder

import (
	"bytes"

	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/gen2brain/webp"
)

func Startup() error {
	return nil
}

func Shutdown() {}

func encodeWebP(buf raster.Buffer, quality int) ([]byte, error) {
	var out bytes.Buffer
	if err := webp.Encode(&out, buf.Image(), webp.Options{Quality: quality, Method: 4}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
