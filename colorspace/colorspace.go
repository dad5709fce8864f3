// Package colorspace enumerates the color spaces understood by the
// compression module's init_compress and cinfo_set_out_color_space exports.
package colorspace

import (
	"fmt"
	"strings"
)

// ColorSpace is the module's J_COLOR_SPACE value.
type ColorSpace int32

const (
	Unknown   ColorSpace = 0
	Grayscale ColorSpace = 1
	RGB       ColorSpace = 2
	YCbCr     ColorSpace = 3
	CMYK      ColorSpace = 4
	YCCK      ColorSpace = 5
	ExtRGB    ColorSpace = 6
	ExtRGBX   ColorSpace = 7
	ExtBGR    ColorSpace = 8
	ExtBGRX   ColorSpace = 9
	ExtXBGR   ColorSpace = 10
	ExtXRGB   ColorSpace = 11
	ExtRGBA   ColorSpace = 12
	ExtBGRA   ColorSpace = 13
	ExtABGR   ColorSpace = 14
	ExtARGB   ColorSpace = 15
)

var names = [...]string{
	Unknown:   "unknown",
	Grayscale: "grayscale",
	RGB:       "rgb",
	YCbCr:     "ycbcr",
	CMYK:      "cmyk",
	YCCK:      "ycck",
	ExtRGB:    "ext_rgb",
	ExtRGBX:   "ext_rgbx",
	ExtBGR:    "ext_bgr",
	ExtBGRX:   "ext_bgrx",
	ExtXBGR:   "ext_xbgr",
	ExtXRGB:   "ext_xrgb",
	ExtRGBA:   "ext_rgba",
	ExtBGRA:   "ext_bgra",
	ExtABGR:   "ext_abgr",
	ExtARGB:   "ext_argb",
}

// aliases accepted by Parse in addition to the canonical names
var aliases = map[string]ColorSpace{
	"gray": Grayscale,
	"grey": Grayscale,
	"rgba": ExtRGBA,
	"bgra": ExtBGRA,
	"bgr":  ExtBGR,
	"rgbx": ExtRGBX,
}

// Valid reports whether c is a known color space other than Unknown.
func (c ColorSpace) Valid() bool {
	return c > Unknown && c <= ExtARGB
}

// Channels returns the number of bytes per pixel for input rows in c.
// Unknown and invalid values report 0.
func (c ColorSpace) Channels() int {
	switch c {
	case Grayscale:
		return 1
	case RGB, YCbCr, ExtRGB, ExtBGR:
		return 3
	case CMYK, YCCK, ExtRGBX, ExtBGRX, ExtXBGR, ExtXRGB, ExtRGBA, ExtBGRA, ExtABGR, ExtARGB:
		return 4
	default:
		return 0
	}
}

// IsOutput reports whether c may be used as a JPEG output color space.
// The extended layouts describe input pixel order only.
func (c ColorSpace) IsOutput() bool {
	switch c {
	case Grayscale, RGB, YCbCr, CMYK, YCCK:
		return true
	default:
		return false
	}
}

func (c ColorSpace) String() string {
	if c >= 0 && int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("colorspace(%d)", int32(c))
}

// Parse resolves a color space by name, case-insensitively.
func Parse(name string) (ColorSpace, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if cs, ok := aliases[n]; ok {
		return cs, nil
	}
	for i, s := range names {
		if i > 0 && s == n {
			return ColorSpace(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown color space %q", name)
}
