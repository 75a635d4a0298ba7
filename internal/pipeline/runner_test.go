package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/rasterflow/internal/compositor"
	"github.com/dunamismax/rasterflow/internal/encoder"
	"github.com/dunamismax/rasterflow/internal/geometry"
	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(t testing.TB, w, h int) raster.Buffer {
	t.Helper()

	pix := make([]byte, w*h*raster.BytesPerPixel)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * raster.BytesPerPixel
			pix[i] = uint8((x * 255) / w)
			pix[i+1] = uint8((y * 255) / h)
			pix[i+2] = 140
			pix[i+3] = 255
		}
	}
	b, err := raster.New(w, h, pix)
	require.NoError(t, err)
	return b
}

func TestRunRejectsMalformedPipelines(t *testing.T) {
	r := NewRunner()
	src := gradient(t, 8, 8)

	_, err := r.Run(context.Background(), src, nil)
	require.ErrorIs(t, err, raster.ErrInvalidPipeline)

	_, err = r.Run(context.Background(), src, []Operation{
		Rotate{DegreesClockwise: 90},
		Encode{Format: encoder.PNG, Quality: 1},
		Flip{Axis: geometry.Horizontal},
	})
	require.ErrorIs(t, err, raster.ErrInvalidPipeline)
	assert.Equal(t, 1, FailedStep(err))

	_, err = r.Run(context.Background(), src, []Operation{Rotate{}, nil})
	require.ErrorIs(t, err, raster.ErrInvalidPipeline)
	assert.Equal(t, 1, FailedStep(err))

	_, err = r.Run(context.Background(), raster.Buffer{}, []Operation{Rotate{}})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestRunRotateThenFit(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), gradient(t, 100, 50), []Operation{
		Rotate{DegreesClockwise: 90},
		Resize{Width: 50, Height: 50, Mode: geometry.FitPreserveAspect},
	})
	require.NoError(t, err)
	require.False(t, res.IsEncoded())

	require.Len(t, res.Steps, 2)
	assert.Equal(t, 50, res.Steps[0].Width)
	assert.Equal(t, 100, res.Steps[0].Height)

	out := res.Buffer
	assert.Equal(t, 50, out.Width())
	assert.Equal(t, 50, out.Height())
	assert.Equal(t, uint8(0), out.At(5, 25).A)
	assert.Equal(t, uint8(255), out.At(25, 25).A)
	assert.Equal(t, uint8(0), out.At(45, 25).A)

	assert.Equal(t, 100*50*4, res.InputByteSize)
	assert.Equal(t, 50*50*4, res.OutputByteSize)
	assert.GreaterOrEqual(t, res.ElapsedMillis(), 0.0)
}

func TestRunStopsAtFailingStep(t *testing.T) {
	res, err := NewRunner().Run(context.Background(), gradient(t, 5, 5), []Operation{
		Flip{Axis: geometry.Vertical},
		Crop{Width: 10, Height: 10},
		Pixelate{BlockSizePx: 2},
	})
	require.ErrorIs(t, err, raster.ErrOutOfBounds)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "crop", stepErr.Op)
	assert.True(t, res.Buffer.IsZero())
	assert.Nil(t, res.Encoded)

	_, err = NewRunner().Run(context.Background(), gradient(t, 5, 5), []Operation{Pixelate{}})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
	assert.Equal(t, 0, FailedStep(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Run(ctx, gradient(t, 4, 4), []Operation{Rotate{DegreesClockwise: 90}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunEncodesTerminalStep(t *testing.T) {
	src := gradient(t, 16, 12)
	res, err := NewRunner().Run(context.Background(), src, []Operation{
		Watermark{Text: "hi", Anchor: compositor.Center, Style: compositor.Style{FontSizePx: 8, Color: raster.White, Opacity: 1}},
		Encode{Format: encoder.PNG, Quality: 0.5},
	})
	require.NoError(t, err)
	require.True(t, res.IsEncoded())
	assert.True(t, res.Buffer.IsZero())
	assert.Equal(t, encoder.PNG, res.Format)
	assert.Equal(t, len(res.Encoded), res.OutputByteSize)

	decoded, _, err := encoder.Decode(res.Encoded)
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Width())
}

func TestRunOrderMatters(t *testing.T) {
	src := gradient(t, 20, 10)
	r := NewRunner()

	a, err := r.Run(context.Background(), src, []Operation{Rotate{DegreesClockwise: 90}, Crop{Width: 5, Height: 5}})
	require.NoError(t, err)
	b, err := r.Run(context.Background(), src, []Operation{Crop{Width: 5, Height: 5}, Rotate{DegreesClockwise: 90}})
	require.NoError(t, err)
	assert.False(t, a.Buffer.Equal(b.Buffer))
}

func TestRunLeavesInputUntouched(t *testing.T) {
	src := gradient(t, 12, 12)
	before := src.Clone()

	_, err := NewRunner().Run(context.Background(), src, []Operation{
		ColorAdjust{Brightness: 1.4, Contrast: 0.7, Saturation: 0.2, HueShiftDegrees: 30, BlurRadiusPx: 1.5},
		Pixelate{BlockSizePx: 3},
		Flip{Axis: geometry.Horizontal},
	})
	require.NoError(t, err)
	assert.Equal(t, before, src.Pix())
}

func TestRunBatch(t *testing.T) {
	inputs := []raster.Buffer{gradient(t, 10, 10), gradient(t, 3, 3), gradient(t, 20, 8)}
	ops := []Operation{Crop{Width: 5, Height: 5}, Encode{Format: encoder.PNG}}

	items, err := NewRunner().RunBatch(context.Background(), inputs, ops, 2)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, raster.ErrOutOfBounds)
	assert.NoError(t, items[2].Err)
	assert.Equal(t, 10*10*4, items[0].Result.InputByteSize)
	assert.Equal(t, 20*8*4, items[2].Result.InputByteSize)

	_, err = NewRunner().RunBatch(context.Background(), inputs, nil, 2)
	require.ErrorIs(t, err, raster.ErrInvalidPipeline)
}

func TestRunBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := NewRunner().RunBatch(ctx, []raster.Buffer{gradient(t, 4, 4), gradient(t, 4, 4)}, []Operation{Rotate{}}, 1)
	require.NoError(t, err)
	for _, it := range items {
		assert.ErrorIs(t, it.Err, context.Canceled)
	}
}

func TestEncodeString(t *testing.T) {
	assert.Equal(t, "encode(png)", Encode{Format: encoder.PNG, Quality: 0.5}.String())
	assert.Equal(t, "encode(jpeg, q=0.80)", Encode{Format: encoder.JPEG, Quality: 0.8}.String())
}
