package kernel

import (
	"fmt"
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
)

const blurPasses = 3

// BoxSizes returns the widths of n successive box filters whose combination
// approximates a Gaussian with standard deviation sigma.
func BoxSizes(sigma float64, n int) []int {
	ideal := math.Sqrt(12*sigma*sigma/float64(n) + 1)
	wl := int(math.Floor(ideal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2

	mIdeal := (12*sigma*sigma - float64(n*wl*wl) - float64(4*n*wl) - float64(3*n)) / float64(-4*wl-4)
	m := int(math.Round(mIdeal))

	sizes := make([]int, n)
	for i := range sizes {
		if i < m {
			sizes[i] = wl
		} else {
			sizes[i] = wu
		}
	}
	return sizes
}

// Blur approximates a Gaussian blur of the given radius with three box blur
// passes per axis. Channels are blurred premultiplied so transparent pixels
// do not bleed dark fringes; edges are clamped. Radius 0 returns src.
func Blur(src raster.Buffer, radius float64) (raster.Buffer, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return raster.Buffer{}, fmt.Errorf("%w: blur radius must be a finite value >= 0, got %v", raster.ErrInvalidParameter, radius)
	}
	if radius == 0 {
		return src, nil
	}

	w, h := src.Width(), src.Height()
	in := src.Pix()
	plane := make([]float32, len(in))
	for i := 0; i < len(in); i += raster.BytesPerPixel {
		a := float32(in[i+3]) / 255
		plane[i] = float32(in[i]) * a
		plane[i+1] = float32(in[i+1]) * a
		plane[i+2] = float32(in[i+2]) * a
		plane[i+3] = float32(in[i+3])
	}

	scratch := make([]float32, len(plane))
	for _, size := range BoxSizes(radius, blurPasses) {
		r := (size - 1) / 2
		if r == 0 {
			continue
		}
		boxPass(scratch, plane, w, h, r, 1, w)
		boxPass(plane, scratch, h, w, r, w, 1)
	}

	out := make([]byte, len(in))
	for i := 0; i < len(out); i += raster.BytesPerPixel {
		a := plane[i+3]
		if a < 0.5 {
			continue
		}
		inv := 255 / a
		out[i] = quantize(plane[i] * inv)
		out[i+1] = quantize(plane[i+1] * inv)
		out[i+2] = quantize(plane[i+2] * inv)
		out[i+3] = quantize(a)
	}
	return raster.New(w, h, out)
}

// boxPass runs a running-sum box filter of radius r along lines of length n.
// step is the pixel distance between neighbours on a line and lineStep the
// pixel distance between the starts of consecutive lines.
func boxPass(dst, src []float32, n, lines, r, step, lineStep int) {
	const ch = raster.BytesPerPixel
	norm := 1 / float32(2*r+1)

	at := func(base, i int) int {
		if i < 0 {
			i = 0
		} else if i >= n {
			i = n - 1
		}
		return (base + i*step) * ch
	}

	for line := 0; line < lines; line++ {
		base := line * lineStep
		var sum [ch]float32
		for k := -r; k <= r; k++ {
			p := at(base, k)
			for c := 0; c < ch; c++ {
				sum[c] += src[p+c]
			}
		}
		for i := 0; i < n; i++ {
			d := at(base, i)
			for c := 0; c < ch; c++ {
				dst[d+c] = sum[c] * norm
			}
			add, sub := at(base, i+r+1), at(base, i-r)
			for c := 0; c < ch; c++ {
				sum[c] += src[add+c] - src[sub+c]
			}
		}
	}
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
