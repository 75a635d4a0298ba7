package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsMismatchedLength(t *testing.T) {
	_, err := New(2, 2, make([]byte, 15))
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New(0, 2, nil)
	require.ErrorIs(t, err, ErrInvalidParameter)

	b, err := New(2, 2, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 16, b.ByteSize())
}

func TestFilledAndAt(t *testing.T) {
	c := Color{R: 10, G: 20, B: 30, A: 40}
	b, err := Filled(3, 2, c)
	require.NoError(t, err)

	assert.Equal(t, c, b.At(2, 1))
	assert.Equal(t, Transparent, b.At(3, 0))
	assert.Equal(t, Transparent, b.At(-1, 0))
}

func TestFromImageNRGBAIsExact(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 60), B: 7, A: uint8(50 + x*30)})
		}
	}

	b, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, b.Pix())
}

func TestFromImageSubImageOffset(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(2, 2, color.NRGBA{R: 200, A: 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	b, err := FromImage(sub)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Width())
	assert.Equal(t, Color{R: 200, A: 255}, b.At(0, 0))
}

func TestFromImageUnpremultipliesRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 100, G: 50, B: 0, A: 128})

	b, err := FromImage(src)
	require.NoError(t, err)
	got := b.At(0, 0)
	assert.InDelta(t, 199, int(got.R), 1)
	assert.InDelta(t, 100, int(got.G), 1)
	assert.Equal(t, uint8(128), got.A)
}

func TestFromImageGrayIsOpaque(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(1, 0, color.Gray{Y: 77})

	b, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 77, G: 77, B: 77, A: 255}, b.At(1, 0))
}

func TestImageViewSharesPixels(t *testing.T) {
	b, err := Filled(2, 2, White)
	require.NoError(t, err)

	img := b.Image()
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
	r, g, bl, a := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, bl, a})
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"#fff", White, true},
		{"#000000", Black, true},
		{"#ff000080", Color{R: 255, A: 128}, true},
		{"#fff8", Color{R: 255, G: 255, B: 255, A: 0x88}, true},
		{"#f00f", Color{R: 255, A: 255}, true},
		{"#fffg", Color{}, false},
		{"ff0000", Color{}, false},
		{"#12345", Color{}, false},
		{"#zzzzzz", Color{}, false},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrInvalidParameter, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindOutOfBounds, KindOf(ErrOutOfBounds))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "", KindOf(nil))
	assert.True(t, IsPermanent(ErrInvalidPipeline))
	assert.False(t, IsPermanent(assert.AnError))
}
