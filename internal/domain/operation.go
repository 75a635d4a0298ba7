package domain

import (
	"fmt"
	"strings"
)

const (
	OpRotate    = "rotate"
	OpFlip      = "flip"
	OpCrop      = "crop"
	OpResize    = "resize"
	OpAdjust    = "adjust"
	OpPixelate  = "pixelate"
	OpWatermark = "watermark"
	OpCaption   = "caption"
	OpEncode    = "encode"
)

// OperationSpec is the wire form of one pipeline step. Op selects which of
// the remaining fields apply.
type OperationSpec struct {
	Op string `json:"op" validate:"required,oneof=rotate flip crop resize adjust pixelate watermark caption encode"`

	Degrees float64 `json:"degrees,omitempty"`
	Axis    string  `json:"axis,omitempty" validate:"omitempty,oneof=horizontal vertical"`

	X      int    `json:"x,omitempty" validate:"gte=0"`
	Y      int    `json:"y,omitempty" validate:"gte=0"`
	Width  int    `json:"width,omitempty" validate:"gte=0,lte=16384"`
	Height int    `json:"height,omitempty" validate:"gte=0,lte=16384"`
	Mode   string `json:"mode,omitempty" validate:"omitempty,oneof=stretch fit"`

	Adjust    *AdjustSpec    `json:"adjust,omitempty"`
	BlockSize int            `json:"block_size,omitempty" validate:"gte=0"`
	Watermark *WatermarkSpec `json:"watermark,omitempty"`
	Caption   *CaptionSpec   `json:"caption,omitempty"`

	Format  string   `json:"format,omitempty" validate:"omitempty,oneof=png jpeg jpg webp"`
	Quality *float64 `json:"quality,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// AdjustSpec factors default to 1 (identity) when omitted.
type AdjustSpec struct {
	Brightness *float64 `json:"brightness,omitempty" validate:"omitempty,gte=0"`
	Contrast   *float64 `json:"contrast,omitempty" validate:"omitempty,gte=0"`
	Saturation *float64 `json:"saturation,omitempty" validate:"omitempty,gte=0"`
	HueShift   float64  `json:"hue_shift,omitempty" validate:"gte=-180,lte=180"`
	BlurRadius float64  `json:"blur_radius,omitempty" validate:"gte=0,lte=250"`
}

type TextStyleSpec struct {
	FontSize    float64  `json:"font_size,omitempty" validate:"gte=0,lte=1000"`
	Color       string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	StrokeColor string   `json:"stroke_color,omitempty" validate:"omitempty,hexcolor"`
	StrokeWidth *float64 `json:"stroke_width,omitempty" validate:"omitempty,gte=0,lte=100"`
	Opacity     *float64 `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type WatermarkSpec struct {
	Text   string `json:"text" validate:"required,max=512"`
	Anchor string `json:"anchor,omitempty" validate:"omitempty,oneof=center top-left top-right bottom-left bottom-right"`
	TextStyleSpec
}

type CaptionSpec struct {
	TopText    string `json:"top_text,omitempty" validate:"max=512"`
	BottomText string `json:"bottom_text,omitempty" validate:"max=512"`
	TextStyleSpec
}

func (o *OperationSpec) Normalize() {
	o.Op = strings.ToLower(strings.TrimSpace(o.Op))
	o.Axis = strings.ToLower(strings.TrimSpace(o.Axis))
	o.Mode = strings.ToLower(strings.TrimSpace(o.Mode))
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Watermark != nil {
		o.Watermark.Anchor = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(o.Watermark.Anchor)), "_", "-")
	}
}

// Validate checks the fields the selected op needs. Value ranges that depend
// on the image, such as crop bounds, are checked when the pipeline runs.
func (o OperationSpec) Validate() error {
	if err := validateStruct(o); err != nil {
		return err
	}

	switch o.Op {
	case OpFlip:
		if o.Axis == "" {
			return fmt.Errorf("%w: flip requires axis", ErrValidation)
		}
	case OpCrop, OpResize:
		if o.Width <= 0 || o.Height <= 0 {
			return fmt.Errorf("%w: %s requires width and height > 0", ErrValidation, o.Op)
		}
	case OpAdjust:
		if o.Adjust == nil {
			return fmt.Errorf("%w: adjust requires adjust settings", ErrValidation)
		}
	case OpPixelate:
		if o.BlockSize < 1 {
			return fmt.Errorf("%w: pixelate requires block_size >= 1", ErrValidation)
		}
	case OpWatermark:
		if o.Watermark == nil {
			return fmt.Errorf("%w: watermark requires watermark settings", ErrValidation)
		}
	case OpCaption:
		if o.Caption == nil || strings.TrimSpace(o.Caption.TopText+o.Caption.BottomText) == "" {
			return fmt.Errorf("%w: caption requires top_text or bottom_text", ErrValidation)
		}
	case OpEncode:
		if o.Format == "" {
			return fmt.Errorf("%w: encode requires format", ErrValidation)
		}
	}
	return nil
}

// ValidatePipeline checks every operation and the shape of the list: it must
// not be empty and encode may only appear as the last step.
func ValidatePipeline(ops []OperationSpec) error {
	if len(ops) == 0 {
		return fmt.Errorf("%w: pipeline must contain at least one operation", ErrValidation)
	}
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operations[%d]: %w", i, err)
		}
		if op.Op == OpEncode && i != len(ops)-1 {
			return fmt.Errorf("%w: operations[%d]: encode must be the last operation", ErrValidation, i)
		}
	}
	return nil
}
