package kernel

import (
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Rec. 709 luma weights, the same ones CSS saturate() uses.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// midGray is the pivot of the contrast remap.
const midGray = 128.0

// RGB is a color with float channels in [0, 255], used between the stages of
// a color adjustment so rounding happens only once.
type RGB struct {
	R, G, B float64
}

func FromColor(c raster.Color) RGB {
	return RGB{R: float64(c.R), G: float64(c.G), B: float64(c.B)}
}

// Color rounds c back to 8 bits, keeping alpha a.
func (c RGB) Color(a uint8) raster.Color {
	return raster.Color{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: a}
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp255(v)))
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func (c RGB) clamp() RGB {
	return RGB{R: clamp255(c.R), G: clamp255(c.G), B: clamp255(c.B)}
}

// Luma returns the Rec. 709 luma of c.
func Luma(c RGB) float64 {
	return lumaR*c.R + lumaG*c.G + lumaB*c.B
}

// Brighten scales every channel by factor.
func Brighten(c RGB, factor float64) RGB {
	return RGB{R: c.R * factor, G: c.G * factor, B: c.B * factor}.clamp()
}

// Contrast remaps every channel linearly around mid-gray.
func Contrast(c RGB, factor float64) RGB {
	f := func(v float64) float64 { return (v-midGray)*factor + midGray }
	return RGB{R: f(c.R), G: f(c.G), B: f(c.B)}.clamp()
}

// Saturate blends c with its luma. 0 is grayscale, 1 is identity.
func Saturate(c RGB, factor float64) RGB {
	l := Luma(c)
	f := func(v float64) float64 { return l + (v-l)*factor }
	return RGB{R: f(c.R), G: f(c.G), B: f(c.B)}.clamp()
}

// ToHSL returns hue in degrees [0, 360) and saturation, lightness in [0, 1].
func ToHSL(c RGB) (h, s, l float64) {
	return colorful.Color{R: c.R / 255, G: c.G / 255, B: c.B / 255}.Hsl()
}

// FromHSL is the inverse of ToHSL.
func FromHSL(h, s, l float64) RGB {
	col := colorful.Hsl(h, s, l)
	return RGB{R: col.R * 255, G: col.G * 255, B: col.B * 255}.clamp()
}

// RotateHue shifts the HSL hue of c by degrees.
func RotateHue(c RGB, degrees float64) RGB {
	if degrees == 0 {
		return c
	}
	h, s, l := ToHSL(c)
	if s == 0 {
		return c
	}
	h = math.Mod(h+degrees, 360)
	if h < 0 {
		h += 360
	}
	return FromHSL(h, s, l)
}
