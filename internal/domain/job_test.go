package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func validRequest() CreateJobRequest {
	return CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Outputs: []OutputSpec{
			{
				ID: "thumb_small",
				Operations: []OperationSpec{
					{Op: OpResize, Width: 64, Height: 64, Mode: "fit"},
					{Op: OpEncode, Format: "webp", Quality: ptr(0.8)},
				},
			},
		},
	}
}

func TestCreateJobRequestValidate(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	assert.ErrorIs(t, CreateJobRequest{}.Validate(), ErrValidation)

	missingObjectKey := validRequest()
	missingObjectKey.SourceType = SourceTypeLocalFile
	assert.ErrorIs(t, missingObjectKey.Validate(), ErrValidation)

	unsupportedSourceType := validRequest()
	unsupportedSourceType.SourceType = "http_url"
	err := unsupportedSourceType.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "source_type")

	duplicate := validRequest()
	duplicate.Outputs = append(duplicate.Outputs, duplicate.Outputs[0])
	assert.ErrorIs(t, duplicate.Validate(), ErrValidation)

	badHook := validRequest()
	badHook.WebhookURL = "not a url"
	assert.ErrorIs(t, badHook.Validate(), ErrValidation)
}

func TestNormalize(t *testing.T) {
	req := CreateJobRequest{
		SourceType: " S3_Presigned ",
		Outputs: []OutputSpec{{
			ID: " a ",
			Operations: []OperationSpec{
				{Op: "Watermark", Watermark: &WatermarkSpec{Text: "x", Anchor: "Bottom_Right"}},
				{Op: " ENCODE", Format: "JPG"},
			},
		}},
	}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, SourceTypeS3Presigned, req.SourceType)
	assert.Equal(t, "a", req.Outputs[0].ID)
	assert.Equal(t, "bottom-right", req.Outputs[0].Operations[0].Watermark.Anchor)
	assert.Equal(t, "jpg", req.Outputs[0].Operations[1].Format)
}

func TestOperationSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		op   OperationSpec
		ok   bool
	}{
		{"rotate any angle", OperationSpec{Op: OpRotate, Degrees: 33.3}, true},
		{"unknown op", OperationSpec{Op: "sharpen"}, false},
		{"flip needs axis", OperationSpec{Op: OpFlip}, false},
		{"flip bad axis", OperationSpec{Op: OpFlip, Axis: "diagonal"}, false},
		{"crop", OperationSpec{Op: OpCrop, X: 1, Y: 2, Width: 3, Height: 4}, true},
		{"crop negative origin", OperationSpec{Op: OpCrop, X: -1, Width: 3, Height: 4}, false},
		{"resize zero", OperationSpec{Op: OpResize, Width: 0, Height: 4}, false},
		{"resize bad mode", OperationSpec{Op: OpResize, Width: 4, Height: 4, Mode: "cover"}, false},
		{"adjust missing", OperationSpec{Op: OpAdjust}, false},
		{"adjust", OperationSpec{Op: OpAdjust, Adjust: &AdjustSpec{Brightness: ptr(1.2), HueShift: -90}}, true},
		{"adjust negative", OperationSpec{Op: OpAdjust, Adjust: &AdjustSpec{Saturation: ptr(-1.0)}}, false},
		{"adjust hue range", OperationSpec{Op: OpAdjust, Adjust: &AdjustSpec{HueShift: 200}}, false},
		{"pixelate zero", OperationSpec{Op: OpPixelate}, false},
		{"pixelate", OperationSpec{Op: OpPixelate, BlockSize: 8}, true},
		{"watermark missing", OperationSpec{Op: OpWatermark}, false},
		{"watermark empty text", OperationSpec{Op: OpWatermark, Watermark: &WatermarkSpec{}}, false},
		{"watermark bad color", OperationSpec{Op: OpWatermark, Watermark: &WatermarkSpec{Text: "x", TextStyleSpec: TextStyleSpec{Color: "red"}}}, false},
		{"watermark", OperationSpec{Op: OpWatermark, Watermark: &WatermarkSpec{Text: "x", Anchor: "center", TextStyleSpec: TextStyleSpec{Color: "#ff000080", Opacity: ptr(0.5)}}}, true},
		{"caption empty", OperationSpec{Op: OpCaption, Caption: &CaptionSpec{}}, false},
		{"caption", OperationSpec{Op: OpCaption, Caption: &CaptionSpec{BottomText: "hi"}}, true},
		{"encode needs format", OperationSpec{Op: OpEncode}, false},
		{"encode quality range", OperationSpec{Op: OpEncode, Format: "jpeg", Quality: ptr(1.5)}, false},
		{"encode gif", OperationSpec{Op: OpEncode, Format: "gif"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidatePipelineShape(t *testing.T) {
	assert.ErrorIs(t, ValidatePipeline(nil), ErrValidation)

	err := ValidatePipeline([]OperationSpec{
		{Op: OpEncode, Format: "png"},
		{Op: OpRotate, Degrees: 90},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "operations[0]")

	assert.NoError(t, ValidatePipeline([]OperationSpec{
		{Op: OpRotate, Degrees: 90},
		{Op: OpEncode, Format: "png"},
	}))
}

func TestCollageSpecValidate(t *testing.T) {
	spec := CollageSpec{Columns: 2, Background: "#fff", Format: " PNG "}
	spec.Normalize()
	assert.Equal(t, "png", spec.Format)
	require.NoError(t, spec.Validate(3))

	assert.ErrorIs(t, spec.Validate(0), ErrValidation)
	assert.ErrorIs(t, spec.Validate(MaxCollageTiles+1), ErrValidation)

	badColor := CollageSpec{Background: "white"}
	assert.ErrorIs(t, badColor.Validate(1), ErrValidation)

	withEncode := CollageSpec{Operations: []OperationSpec{{Op: OpEncode, Format: "png"}}}
	err := withEncode.Validate(1)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "operations[0]")

	badOp := CollageSpec{Operations: []OperationSpec{{Op: OpPixelate}}}
	assert.ErrorIs(t, badOp.Validate(1), ErrValidation)
}
