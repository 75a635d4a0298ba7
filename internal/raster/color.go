package raster

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color is a straight-alpha RGBA8 value.
type Color struct {
	R, G, B, A uint8
}

var (
	Transparent = Color{}
	Black       = Color{A: 0xff}
	White       = Color{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// ParseHexColor accepts #rgb, #rgba, #rrggbb and #rrggbbaa.
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("%w: color %q must start with #", ErrInvalidParameter, s)
	}

	alpha := uint8(0xff)
	switch len(s) {
	case 4, 5:
		if len(s) == 5 {
			a, err := strconv.ParseUint(s[4:], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("%w: color %q: %v", ErrInvalidParameter, s, err)
			}
			alpha = uint8(a * 0x11)
		}
		s = "#" + string([]byte{s[1], s[1], s[2], s[2], s[3], s[3]})
	case 7:
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("%w: color %q: %v", ErrInvalidParameter, s, err)
		}
		alpha = uint8(a)
		s = s[:7]
	default:
		return Color{}, fmt.Errorf("%w: color %q has invalid length", ErrInvalidParameter, s)
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q: %v", ErrInvalidParameter, s, err)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: alpha}, nil
}
