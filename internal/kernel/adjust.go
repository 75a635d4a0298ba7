// Package kernel implements the per-pixel and neighborhood operations of the
// pipeline: color adjustment, blur and pixelation.
package kernel

import (
	"fmt"
	"math"

	"github.com/dunamismax/rasterflow/internal/raster"
)

// Adjustments describes a color adjustment. Brightness, Contrast and
// Saturation are factors where 1 is identity (100%). HueShiftDegrees is in
// [-180, 180]. BlurRadiusPx is the Gaussian standard deviation in pixels.
//
// The stages always run in this order: brightness, contrast, saturation, hue,
// blur. Channels are clamped after every color stage and rounded once before
// the blur.
type Adjustments struct {
	Brightness      float64
	Contrast        float64
	Saturation      float64
	HueShiftDegrees float64
	BlurRadiusPx    float64
}

// Neutral returns adjustments that leave an image unchanged.
func Neutral() Adjustments {
	return Adjustments{Brightness: 1, Contrast: 1, Saturation: 1}
}

func (a Adjustments) Validate() error {
	for name, v := range map[string]float64{
		"brightness": a.Brightness,
		"contrast":   a.Contrast,
		"saturation": a.Saturation,
		"blur":       a.BlurRadiusPx,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be a finite value >= 0, got %v", raster.ErrInvalidParameter, name, v)
		}
	}
	if math.IsNaN(a.HueShiftDegrees) || a.HueShiftDegrees < -180 || a.HueShiftDegrees > 180 {
		return fmt.Errorf("%w: hue shift must be within [-180, 180], got %v", raster.ErrInvalidParameter, a.HueShiftDegrees)
	}
	return nil
}

func (a Adjustments) colorIsNeutral() bool {
	return a.Brightness == 1 && a.Contrast == 1 && a.Saturation == 1 && a.HueShiftDegrees == 0
}

// AdjustColor runs the color stages on a single pixel.
func (a Adjustments) AdjustColor(c raster.Color) raster.Color {
	v := FromColor(c)
	if a.Brightness != 1 {
		v = Brighten(v, a.Brightness)
	}
	if a.Contrast != 1 {
		v = Contrast(v, a.Contrast)
	}
	if a.Saturation != 1 {
		v = Saturate(v, a.Saturation)
	}
	v = RotateHue(v, a.HueShiftDegrees)
	return v.Color(c.A)
}

// Adjust applies a to src and returns a new buffer.
func Adjust(src raster.Buffer, a Adjustments) (raster.Buffer, error) {
	if err := a.Validate(); err != nil {
		return raster.Buffer{}, err
	}

	out := src
	if !a.colorIsNeutral() {
		pix := src.Clone()
		for i := 0; i < len(pix); i += raster.BytesPerPixel {
			c := a.AdjustColor(raster.Color{R: pix[i], G: pix[i+1], B: pix[i+2], A: pix[i+3]})
			pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
		}
		var err error
		if out, err = raster.New(src.Width(), src.Height(), pix); err != nil {
			return raster.Buffer{}, err
		}
	}

	return Blur(out, a.BlurRadiusPx)
}
