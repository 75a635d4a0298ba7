package kernel

import (
	"fmt"

	"github.com/dunamismax/rasterflow/internal/raster"
)

// Pixelate replaces every block x block tile of src with the mean of its
// channels. Tiles on the right and bottom edges may be smaller. A block of 1
// returns src unchanged.
func Pixelate(src raster.Buffer, block int) (raster.Buffer, error) {
	if block < 1 {
		return raster.Buffer{}, fmt.Errorf("%w: pixelate block size must be >= 1, got %d", raster.ErrInvalidParameter, block)
	}
	if block == 1 {
		return src, nil
	}

	w, h := src.Width(), src.Height()
	in := src.Pix()
	out := make([]byte, len(in))

	for by := 0; by < h; by += block {
		bh := min(block, h-by)
		for bx := 0; bx < w; bx += block {
			bw := min(block, w-bx)

			var sum [raster.BytesPerPixel]int
			for y := by; y < by+bh; y++ {
				row := src.Offset(bx, y)
				for x := 0; x < bw; x++ {
					i := row + x*raster.BytesPerPixel
					for c := range sum {
						sum[c] += int(in[i+c])
					}
				}
			}

			n := bw * bh
			var mean [raster.BytesPerPixel]byte
			for c := range sum {
				mean[c] = byte((2*sum[c] + n) / (2 * n))
			}

			for y := by; y < by+bh; y++ {
				row := src.Offset(bx, y)
				for x := 0; x < bw; x++ {
					i := row + x*raster.BytesPerPixel
					copy(out[i:i+raster.BytesPerPixel], mean[:])
				}
			}
		}
	}
	return raster.New(w, h, out)
}
