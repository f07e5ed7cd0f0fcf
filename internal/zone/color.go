package zone

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is an RGB triple with channels in 0..1.
type Color struct{ R, G, B float64 }

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
	Red   = Color{R: 1}
	Green = Color{G: 1}
	Blue  = Color{B: 1}
)

// RGB8 builds a Color from 8-bit channels.
func RGB8(r, g, b uint8) Color {
	return Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

func fromColorful(c colorful.Color) Color { return Color{R: c.R, G: c.G, B: c.B} }

func (c Color) colorful() colorful.Color { return colorful.Color{R: c.R, G: c.G, B: c.B} }

// Clamped returns c with every channel forced into 0..1. NaN becomes 0.
func (c Color) Clamped() Color {
	return Color{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
}

// Bytes quantizes c to 8-bit channels, rounding to nearest.
func (c Color) Bytes() (r, g, b uint8) {
	return to8(c.R), to8(c.G), to8(c.B)
}

// Hex formats c as #rrggbb.
func (c Color) Hex() string { return c.Clamped().colorful().Hex() }

// Luminance is the relative luminance (CIE Y) of c, treating channels as sRGB.
func (c Color) Luminance() float64 {
	_, y, _ := c.Clamped().colorful().Xyz()
	return y
}

// Blend moves c toward o by t: c + t*(o-c).
func (c Color) Blend(o Color, t float64) Color {
	return fromColorful(c.colorful().BlendRgb(o.colorful(), t))
}

func clamp01(x float64) float64 {
	if x > 0 {
		if x > 1 {
			return 1
		}
		return x
	}
	return 0
}

func to8(x float64) uint8 {
	return uint8(math.Round(clamp01(x) * 255))
}
