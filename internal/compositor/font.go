// Package compositor draws text overlays and collages onto raster buffers.
package compositor

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dunamismax/rasterflow/internal/raster"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// WrapRatio is the share of the image width a line of text may occupy before
// it is wrapped.
const WrapRatio = 0.9

var (
	regularOnce sync.Once
	regular     *opentype.Font
	regularErr  error
)

func regularFont() (*opentype.Font, error) {
	regularOnce.Do(func() {
		regular, regularErr = opentype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// NewFace returns a Go Regular face whose em size is sizePx pixels. Faces are
// not safe for concurrent use; callers own the returned face and close it.
func NewFace(sizePx float64) (font.Face, error) {
	if math.IsNaN(sizePx) || math.IsInf(sizePx, 0) || sizePx <= 0 {
		return nil, fmt.Errorf("%w: font size must be > 0, got %v", raster.ErrInvalidParameter, sizePx)
	}
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("parse go regular: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Measure returns the width in whole pixels that s occupies when drawn with
// face, covering both its advance and its ink.
func Measure(face font.Face, s string) int {
	bounds, advance := font.BoundString(face, s)
	return max(advance.Ceil(), bounds.Max.X.Ceil())
}

// Wrap splits text into lines no wider than maxWidth. Explicit newlines are
// kept. Lines that already fit are left as written; longer ones are filled
// greedily word by word, and a single word wider than maxWidth gets its own
// line.
func Wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		if Measure(face, para) <= maxWidth {
			lines = append(lines, para)
			continue
		}

		var line string
		for _, word := range strings.Fields(para) {
			if line == "" {
				line = word
				continue
			}
			if next := line + " " + word; Measure(face, next) <= maxWidth {
				line = next
				continue
			}
			lines = append(lines, line)
			line = word
		}
		lines = append(lines, line)
	}
	return lines
}

// block is a laid out run of lines, positioned relative to its own top-left
// corner.
type block struct {
	lines      []string
	widths     []int
	width      int
	height     int
	ascent     int
	lineHeight int
}

func layout(face font.Face, text string, imageWidth int) block {
	m := face.Metrics()
	b := block{
		lines:      Wrap(face, text, int(WrapRatio*float64(imageWidth))),
		ascent:     m.Ascent.Ceil(),
		lineHeight: m.Height.Ceil(),
	}
	for _, line := range b.lines {
		w := Measure(face, line)
		b.widths = append(b.widths, w)
		b.width = max(b.width, w)
	}
	if n := len(b.lines); n > 0 {
		b.height = (n-1)*b.lineHeight + b.ascent + m.Descent.Ceil()
	}
	return b
}

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

// place returns the baseline origin of every line when the block's top-left
// corner sits at (x, y).
func (b block) place(x, y int, a align) []fixed.Point26_6 {
	dots := make([]fixed.Point26_6, len(b.lines))
	for i, w := range b.widths {
		lx := x
		switch a {
		case alignCenter:
			lx += (b.width - w) / 2
		case alignRight:
			lx += b.width - w
		}
		dots[i] = fixed.P(lx, y+i*b.lineHeight+b.ascent)
	}
	return dots
}
