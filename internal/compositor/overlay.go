package compositor

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/dunamismax/rasterflow/internal/raster"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	// AnchorMargin is the distance between a corner-anchored watermark and the
	// nearest image edges.
	AnchorMargin = 50
	// CaptionOffset is the distance between a caption block and the top or
	// bottom image edge.
	CaptionOffset = 20
)

type Anchor int

const (
	Center Anchor = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

var anchorNames = map[Anchor]string{
	Center:      "center",
	TopLeft:     "top-left",
	TopRight:    "top-right",
	BottomLeft:  "bottom-left",
	BottomRight: "bottom-right",
}

func (a Anchor) String() string {
	if name, ok := anchorNames[a]; ok {
		return name
	}
	return fmt.Sprintf("anchor(%d)", int(a))
}

// ParseAnchor accepts the names returned by Anchor.String, case-insensitive,
// with either '-' or '_' as separator.
func ParseAnchor(s string) (Anchor, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for a, name := range anchorNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown anchor %q", raster.ErrInvalidParameter, s)
}

// Style is the paint shared by watermarks and captions. Opacity scales the
// alpha of both the fill and the stroke.
type Style struct {
	FontSizePx    float64
	Color         raster.Color
	StrokeColor   raster.Color
	StrokeWidthPx float64
	Opacity       float64
}

func (s Style) validate() error {
	if math.IsNaN(s.StrokeWidthPx) || math.IsInf(s.StrokeWidthPx, 0) || s.StrokeWidthPx < 0 {
		return fmt.Errorf("%w: stroke width must be >= 0, got %v", raster.ErrInvalidParameter, s.StrokeWidthPx)
	}
	if math.IsNaN(s.Opacity) || s.Opacity < 0 || s.Opacity > 1 {
		return fmt.Errorf("%w: opacity must be within [0, 1], got %v", raster.ErrInvalidParameter, s.Opacity)
	}
	return nil
}

type Watermark struct {
	Text   string
	Anchor Anchor
	Style
}

// Caption is meme-style text: TopText stacks down from the top edge and
// BottomText stacks up from the bottom edge, both centered horizontally.
type Caption struct {
	TopText    string
	BottomText string
	Style
}

// DrawWatermark renders wm onto a copy of src.
func DrawWatermark(src raster.Buffer, wm Watermark) (raster.Buffer, error) {
	if strings.TrimSpace(wm.Text) == "" {
		return raster.Buffer{}, fmt.Errorf("%w: watermark text is empty", raster.ErrInvalidParameter)
	}
	if _, ok := anchorNames[wm.Anchor]; !ok {
		return raster.Buffer{}, fmt.Errorf("%w: unknown anchor %d", raster.ErrInvalidParameter, int(wm.Anchor))
	}
	if err := wm.Style.validate(); err != nil {
		return raster.Buffer{}, err
	}

	face, err := NewFace(wm.FontSizePx)
	if err != nil {
		return raster.Buffer{}, err
	}
	defer face.Close()

	if wm.Opacity == 0 {
		return src, nil
	}

	W, H := src.Width(), src.Height()
	b := layout(face, wm.Text, W)

	var x, y int
	var a align
	switch wm.Anchor {
	case Center:
		x, y, a = (W-b.width)/2, (H-b.height)/2, alignCenter
	case TopLeft:
		x, y, a = AnchorMargin, AnchorMargin, alignLeft
	case TopRight:
		x, y, a = W-AnchorMargin-b.width, AnchorMargin, alignRight
	case BottomLeft:
		x, y, a = AnchorMargin, H-AnchorMargin-b.height, alignLeft
	case BottomRight:
		x, y, a = W-AnchorMargin-b.width, H-AnchorMargin-b.height, alignRight
	}

	return paint(src, face, wm.Style, b.lines, b.place(x, y, a))
}

// DrawCaption renders c onto a copy of src.
func DrawCaption(src raster.Buffer, c Caption) (raster.Buffer, error) {
	if strings.TrimSpace(c.TopText) == "" && strings.TrimSpace(c.BottomText) == "" {
		return raster.Buffer{}, fmt.Errorf("%w: caption needs top or bottom text", raster.ErrInvalidParameter)
	}
	if err := c.Style.validate(); err != nil {
		return raster.Buffer{}, err
	}

	face, err := NewFace(c.FontSizePx)
	if err != nil {
		return raster.Buffer{}, err
	}
	defer face.Close()

	if c.Opacity == 0 {
		return src, nil
	}

	W, H := src.Width(), src.Height()
	var lines []string
	var dots []fixed.Point26_6
	if strings.TrimSpace(c.TopText) != "" {
		b := layout(face, c.TopText, W)
		lines = append(lines, b.lines...)
		dots = append(dots, b.place((W-b.width)/2, CaptionOffset, alignCenter)...)
	}
	if strings.TrimSpace(c.BottomText) != "" {
		b := layout(face, c.BottomText, W)
		lines = append(lines, b.lines...)
		dots = append(dots, b.place((W-b.width)/2, H-CaptionOffset-b.height, alignCenter)...)
	}

	return paint(src, face, c.Style, lines, dots)
}

// paint draws lines at dots, stroke first and fill on top, and blends the
// result over a copy of src. Pixels with no coverage are left untouched.
func paint(src raster.Buffer, face font.Face, s Style, lines []string, dots []fixed.Point26_6) (raster.Buffer, error) {
	W, H := src.Width(), src.Height()
	fill := image.NewAlpha(image.Rect(0, 0, W, H))
	d := &font.Drawer{Dst: fill, Src: image.Opaque, Face: face}
	for i, line := range lines {
		d.Dot = dots[i]
		d.DrawString(line)
	}

	ink := coverageBounds(fill)
	if ink.Empty() {
		return src, nil
	}

	var stroke *image.Alpha
	if s.StrokeWidthPx > 0 && s.StrokeColor.A > 0 {
		stroke = dilate(fill, ink, s.StrokeWidthPx)
		r := int(math.Ceil(s.StrokeWidthPx))
		ink = ink.Inset(-r).Intersect(fill.Rect)
	}

	fillAlpha := float64(s.Color.A) / 255 * s.Opacity
	strokeAlpha := float64(s.StrokeColor.A) / 255 * s.Opacity

	pix := src.Clone()
	for y := ink.Min.Y; y < ink.Max.Y; y++ {
		for x := ink.Min.X; x < ink.Max.X; x++ {
			i := src.Offset(x, y)
			if stroke != nil {
				if cov := stroke.Pix[stroke.PixOffset(x, y)]; cov > 0 {
					blendOver(pix[i:i+4], s.StrokeColor, float64(cov)/255*strokeAlpha)
				}
			}
			if cov := fill.Pix[fill.PixOffset(x, y)]; cov > 0 {
				blendOver(pix[i:i+4], s.Color, float64(cov)/255*fillAlpha)
			}
		}
	}
	return raster.New(W, H, pix)
}

func coverageBounds(m *image.Alpha) image.Rectangle {
	var r image.Rectangle
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] == 0 {
				continue
			}
			r = r.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return r
}

// dilate grows the coverage in area by every offset within a disc of the
// given radius, keeping the strongest coverage per pixel.
func dilate(m *image.Alpha, area image.Rectangle, radius float64) *image.Alpha {
	out := image.NewAlpha(m.Rect)
	r := int(math.Ceil(radius))
	r2 := radius * radius

	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) > r2 {
				continue
			}
			for y := area.Min.Y; y < area.Max.Y; y++ {
				ty := y + dy
				if ty < m.Rect.Min.Y || ty >= m.Rect.Max.Y {
					continue
				}
				for x := area.Min.X; x < area.Max.X; x++ {
					tx := x + dx
					if tx < m.Rect.Min.X || tx >= m.Rect.Max.X {
						continue
					}
					v := m.Pix[m.PixOffset(x, y)]
					if o := out.PixOffset(tx, ty); v > out.Pix[o] {
						out.Pix[o] = v
					}
				}
			}
		}
	}
	return out
}

// blendOver composites c with alpha a over the straight-alpha pixel dst.
func blendOver(dst []byte, c raster.Color, a float64) {
	if a <= 0 {
		return
	}
	da := float64(dst[3]) / 255
	outA := a + da*(1-a)
	if outA <= 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	mix := func(s, d uint8) uint8 {
		v := (float64(s)*a + float64(d)*da*(1-a)) / outA
		return uint8(math.Round(math.Min(255, math.Max(0, v))))
	}
	dst[0] = mix(c.R, dst[0])
	dst[1] = mix(c.G, dst[1])
	dst[2] = mix(c.B, dst[2])
	dst[3] = uint8(math.Round(outA * 255))
}
