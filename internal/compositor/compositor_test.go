package compositor

import (
	"testing"

	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(t *testing.T, w, h int, c raster.Color) raster.Buffer {
	t.Helper()
	b, err := raster.Filled(w, h, c)
	require.NoError(t, err)
	return b
}

func TestWrap(t *testing.T) {
	face, err := NewFace(20)
	require.NoError(t, err)
	defer face.Close()

	assert.Equal(t, []string{"aaa bbb", "ccc"}, Wrap(face, "aaa bbb ccc", Measure(face, "aaa bbb")))
	assert.Equal(t, []string{"supercalifragilistic", "a"}, Wrap(face, "supercalifragilistic a", 10))
	assert.Equal(t, []string{"a", "b"}, Wrap(face, "a\nb", 1000))
	assert.Equal(t, []string{"fits  as written"}, Wrap(face, "fits  as written", 1000))
}

func TestLayoutWrapsPastNinetyPercent(t *testing.T) {
	face, err := NewFace(20)
	require.NoError(t, err)
	defer face.Close()

	b := layout(face, "the quick brown fox jumps over the lazy dog", 120)
	require.Greater(t, len(b.lines), 1)
	for i, w := range b.widths {
		assert.LessOrEqual(t, w, 108, b.lines[i])
	}
	assert.Equal(t, (len(b.lines)-1)*b.lineHeight+b.ascent+face.Metrics().Descent.Ceil(), b.height)
}

func TestNewFaceRejectsBadSize(t *testing.T) {
	_, err := NewFace(0)
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("Bottom_Right")
	require.NoError(t, err)
	assert.Equal(t, BottomRight, a)

	for _, want := range []Anchor{Center, TopLeft, TopRight, BottomLeft, BottomRight} {
		got, err := ParseAnchor(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = ParseAnchor("middle")
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestWatermarkBottomRightHalfOpacity(t *testing.T) {
	src := filled(t, 200, 200, raster.Black)
	out, err := DrawWatermark(src, Watermark{
		Text:   "SAMPLE",
		Anchor: BottomRight,
		Style:  Style{FontSizePx: 32, Color: raster.White, Opacity: 0.5},
	})
	require.NoError(t, err)

	var maxR uint8
	maxX, maxY := -1, -1
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			c := out.At(x, y)
			if x >= 150 || y >= 150 {
				require.Equal(t, raster.Black, c, "pixel (%d,%d) outside the text block changed", x, y)
				continue
			}
			if c != raster.Black {
				maxX, maxY = max(maxX, x), max(maxY, y)
			}
			maxR = max(maxR, c.R)
			assert.Equal(t, uint8(255), c.A)
		}
	}
	assert.InDelta(t, 128, int(maxR), 2)
	assert.Greater(t, maxX, 130)
	assert.Greater(t, maxY, 125)
}

func TestWatermarkAnchors(t *testing.T) {
	src := filled(t, 400, 300, raster.Black)
	for _, anchor := range []Anchor{Center, TopLeft, TopRight, BottomLeft, BottomRight} {
		out, err := DrawWatermark(src, Watermark{
			Text:   "MARK",
			Anchor: anchor,
			Style:  Style{FontSizePx: 24, Color: raster.White, Opacity: 1},
		})
		require.NoError(t, err, anchor.String())

		var sumX, sumY, n int
		for y := 0; y < 300; y++ {
			for x := 0; x < 400; x++ {
				if out.At(x, y) != raster.Black {
					sumX, sumY, n = sumX+x, sumY+y, n+1
				}
			}
		}
		require.Positive(t, n, anchor.String())
		cx, cy := sumX/n, sumY/n

		switch anchor {
		case Center:
			assert.InDelta(t, 200, cx, 20)
			assert.InDelta(t, 150, cy, 20)
		case TopLeft:
			assert.Less(t, cx, 200)
			assert.Less(t, cy, 150)
		case TopRight:
			assert.Greater(t, cx, 200)
			assert.Less(t, cy, 150)
		case BottomLeft:
			assert.Less(t, cx, 200)
			assert.Greater(t, cy, 150)
		case BottomRight:
			assert.Greater(t, cx, 200)
			assert.Greater(t, cy, 150)
		}
	}
}

func TestWatermarkValidation(t *testing.T) {
	src := filled(t, 50, 50, raster.Black)
	style := Style{FontSizePx: 12, Color: raster.White, Opacity: 1}

	_, err := DrawWatermark(src, Watermark{Text: "  ", Style: style})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)

	_, err = DrawWatermark(src, Watermark{Text: "x", Anchor: Anchor(42), Style: style})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)

	bad := style
	bad.Opacity = 1.5
	_, err = DrawWatermark(src, Watermark{Text: "x", Style: bad})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)

	bad = style
	bad.StrokeWidthPx = -1
	_, err = DrawWatermark(src, Watermark{Text: "x", Style: bad})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)

	bad = style
	bad.FontSizePx = 0
	_, err = DrawWatermark(src, Watermark{Text: "x", Style: bad})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestWatermarkZeroOpacityIsIdentity(t *testing.T) {
	src := filled(t, 80, 80, raster.Color{R: 10, G: 20, B: 30, A: 200})
	out, err := DrawWatermark(src, Watermark{Text: "hidden", Style: Style{FontSizePx: 16, Color: raster.White}})
	require.NoError(t, err)
	assert.True(t, out.Equal(src))
}

func TestCaptionStrokeAndPlacement(t *testing.T) {
	gray := raster.Color{R: 128, G: 128, B: 128, A: 255}
	src := filled(t, 300, 200, gray)
	out, err := DrawCaption(src, Caption{
		TopText:    "HELLO",
		BottomText: "WORLD",
		Style: Style{
			FontSizePx:    30,
			Color:         raster.White,
			StrokeColor:   raster.Black,
			StrokeWidthPx: 2,
			Opacity:       1,
		},
	})
	require.NoError(t, err)

	var sawFill, sawStroke, sawTop, sawBottom bool
	for y := 0; y < 200; y++ {
		for x := 0; x < 300; x++ {
			c := out.At(x, y)
			if y < 18 || y >= 182 || y == 100 {
				require.Equal(t, gray, c, "pixel (%d,%d)", x, y)
				continue
			}
			if c == gray {
				continue
			}
			sawFill = sawFill || c.R == 255
			sawStroke = sawStroke || c.R == 0
			sawTop = sawTop || y < 100
			sawBottom = sawBottom || y > 100
		}
	}
	assert.True(t, sawFill, "fill")
	assert.True(t, sawStroke, "stroke")
	assert.True(t, sawTop, "top caption")
	assert.True(t, sawBottom, "bottom caption")
}

func TestCaptionNeedsText(t *testing.T) {
	_, err := DrawCaption(filled(t, 10, 10, raster.Black), Caption{Style: Style{FontSizePx: 10, Opacity: 1}})
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestBlendOver(t *testing.T) {
	px := []byte{0, 0, 0, 255}
	blendOver(px, raster.White, 0.5)
	assert.Equal(t, []byte{128, 128, 128, 255}, px)

	px = []byte{0, 0, 0, 0}
	blendOver(px, raster.Color{R: 200, G: 10, B: 20, A: 255}, 0.5)
	assert.Equal(t, []byte{200, 10, 20, 128}, px)

	px = []byte{1, 2, 3, 4}
	blendOver(px, raster.White, 0)
	assert.Equal(t, []byte{1, 2, 3, 4}, px)
}

func TestCollage(t *testing.T) {
	red := filled(t, 20, 10, raster.Color{R: 255, A: 255})
	blue := filled(t, 10, 10, raster.Color{B: 255, A: 255})

	layout := CollageLayout{Columns: 2, CellWidth: 10, CellHeight: 10, Gap: 2, Background: raster.White}
	out, err := Collage([]raster.Buffer{red, blue}, layout)
	require.NoError(t, err)
	assert.Equal(t, 26, out.Width())
	assert.Equal(t, 14, out.Height())

	assert.Equal(t, raster.White, out.At(0, 0))
	// The wide tile is letterboxed inside its cell.
	assert.Equal(t, raster.White, out.At(7, 2))
	mid := out.At(7, 6)
	assert.InDelta(t, 255, int(mid.R), 2)
	assert.InDelta(t, 0, int(mid.B), 2)
	assert.Equal(t, raster.Color{B: 255, A: 255}, out.At(19, 7))

	_, err = Collage(nil, layout)
	require.ErrorIs(t, err, raster.ErrInvalidParameter)

	layout.Columns = 0
	_, err = Collage([]raster.Buffer{red}, layout)
	require.ErrorIs(t, err, raster.ErrInvalidParameter)
}
