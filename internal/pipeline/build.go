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

// Defaults applied to fields a request leaves out.
const (
	DefaultQuality            = 0.85
	DefaultWatermarkFontSize  = 32
	DefaultWatermarkOpacity   = 0.65
	DefaultCaptionFontSize    = 48
	DefaultCaptionStrokeWidth = 2
)

// Plan builds specs and checks the resulting pipeline shape, so a request can
// be rejected before any image is fetched.
func Plan(specs []domain.OperationSpec) ([]Operation, error) {
	ops, err := BuildOperations(specs)
	if err != nil {
		return nil, err
	}
	if err := Validate(ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// BuildOperations turns wire specs into runnable operations.
func BuildOperations(specs []domain.OperationSpec) ([]Operation, error) {
	ops := make([]Operation, 0, len(specs))
	for i, spec := range specs {
		op, err := buildOperation(spec)
		if err != nil {
			return nil, &StepError{Index: i, Op: spec.Op, Err: err}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func buildOperation(spec domain.OperationSpec) (Operation, error) {
	switch spec.Op {
	case domain.OpRotate:
		return Rotate{DegreesClockwise: spec.Degrees}, nil

	case domain.OpFlip:
		switch spec.Axis {
		case "horizontal":
			return Flip{Axis: geometry.Horizontal}, nil
		case "vertical":
			return Flip{Axis: geometry.Vertical}, nil
		}
		return nil, fmt.Errorf("%w: unknown flip axis %q", raster.ErrInvalidParameter, spec.Axis)

	case domain.OpCrop:
		return Crop{X: spec.X, Y: spec.Y, Width: spec.Width, Height: spec.Height}, nil

	case domain.OpResize:
		mode := geometry.Stretch
		switch spec.Mode {
		case "", "stretch":
		case "fit":
			mode = geometry.FitPreserveAspect
		default:
			return nil, fmt.Errorf("%w: unknown resize mode %q", raster.ErrInvalidParameter, spec.Mode)
		}
		return Resize{Width: spec.Width, Height: spec.Height, Mode: mode}, nil

	case domain.OpAdjust:
		if spec.Adjust == nil {
			return nil, fmt.Errorf("%w: adjust settings missing", raster.ErrInvalidParameter)
		}
		a := kernel.Neutral()
		a.Brightness = valueOr(spec.Adjust.Brightness, 1)
		a.Contrast = valueOr(spec.Adjust.Contrast, 1)
		a.Saturation = valueOr(spec.Adjust.Saturation, 1)
		a.HueShiftDegrees = spec.Adjust.HueShift
		a.BlurRadiusPx = spec.Adjust.BlurRadius
		if err := a.Validate(); err != nil {
			return nil, err
		}
		return ColorAdjust(a), nil

	case domain.OpPixelate:
		return Pixelate{BlockSizePx: spec.BlockSize}, nil

	case domain.OpWatermark:
		if spec.Watermark == nil {
			return nil, fmt.Errorf("%w: watermark settings missing", raster.ErrInvalidParameter)
		}
		style, err := buildStyle(spec.Watermark.TextStyleSpec, DefaultWatermarkFontSize, DefaultWatermarkOpacity, 0)
		if err != nil {
			return nil, err
		}
		anchor := compositor.BottomRight
		if spec.Watermark.Anchor != "" {
			if anchor, err = compositor.ParseAnchor(spec.Watermark.Anchor); err != nil {
				return nil, err
			}
		}
		return Watermark{Text: spec.Watermark.Text, Anchor: anchor, Style: style}, nil

	case domain.OpCaption:
		if spec.Caption == nil {
			return nil, fmt.Errorf("%w: caption settings missing", raster.ErrInvalidParameter)
		}
		style, err := buildStyle(spec.Caption.TextStyleSpec, DefaultCaptionFontSize, 1, DefaultCaptionStrokeWidth)
		if err != nil {
			return nil, err
		}
		return Caption{TopText: spec.Caption.TopText, BottomText: spec.Caption.BottomText, Style: style}, nil

	case domain.OpEncode:
		format, err := encoder.ParseFormat(spec.Format)
		if err != nil {
			return nil, err
		}
		return Encode{Format: format, Quality: valueOr(spec.Quality, DefaultQuality)}, nil
	}

	return nil, fmt.Errorf("%w: unknown operation %q", raster.ErrInvalidPipeline, spec.Op)
}

// buildStyle fills in white text with a black outline when colors are left
// out. The outline is only drawn when a stroke width is set or defaulted; an
// explicit zero turns a default outline off.
func buildStyle(s domain.TextStyleSpec, fontSize, opacity, strokeWidth float64) (compositor.Style, error) {
	style := compositor.Style{
		FontSizePx:    fontSize,
		Color:         raster.White,
		StrokeColor:   raster.Black,
		StrokeWidthPx: valueOr(s.StrokeWidth, strokeWidth),
		Opacity:       valueOr(s.Opacity, opacity),
	}
	if s.FontSize > 0 {
		style.FontSizePx = s.FontSize
	}

	var err error
	if s.Color != "" {
		if style.Color, err = raster.ParseHexColor(s.Color); err != nil {
			return compositor.Style{}, err
		}
	}
	if s.StrokeColor != "" {
		if style.StrokeColor, err = raster.ParseHexColor(s.StrokeColor); err != nil {
			return compositor.Style{}, err
		}
	}
	return style, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
