//go:build govips && cgo

package encoder

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/rasterflow/internal/raster"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initializes libvips. It is safe to call more than once.
func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// encodeWebP hands libvips a lossless PNG of buf and exports it as WEBP.
func encodeWebP(buf raster.Buffer, quality int) ([]byte, error) {
	if err := Startup(); err != nil {
		return nil, err
	}

	var staged bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&staged, buf.Image()); err != nil {
		return nil, fmt.Errorf("stage png: %w", err)
	}

	img, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load staged image: %w", err)
	}
	defer img.Close()

	params := vips.NewWebpExportParams()
	params.Quality = quality
	data, _, err := img.ExportWebp(params)
	if err != nil {
		return nil, err
	}
	return data, nil
}
