package draw

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Paint fills or strokes a shape: a Color, a LinearGradient or a
// RadialGradient. A nil Paint paints nothing.
type Paint interface {
	paint()
}

// Color is an 8-bit RGBA colour. A is opacity, 255 being opaque.
type Color struct {
	R, G, B, A uint8
}

// LinearGradient runs from From at (X1, Y1) to To at (X2, Y2).
type LinearGradient struct {
	X1, Y1 float64
	X2, Y2 float64
	From   Color
	To     Color
}

// RadialGradient runs from Inner at the centre to Outer at radius R.
type RadialGradient struct {
	CX, CY, R float64
	Inner     Color
	Outer     Color
}

func (Color) paint()          {}
func (LinearGradient) paint() {}
func (RadialGradient) paint() {}

// RGB returns an opaque colour.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 255}
}

// RGBA returns a colour with explicit opacity.
func RGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

var (
	Black       = RGB(0, 0, 0)
	White       = RGB(255, 255, 255)
	Transparent = RGBA(0, 0, 0, 0)
)

// WithAlpha returns c with opacity a.
func (c Color) WithAlpha(a uint8) Color {
	c.A = a
	return c
}

// Opacity returns A as a fraction in [0, 1].
func (c Color) Opacity() float64 {
	return float64(c.A) / 255
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

func fromColorful(cf colorful.Color, a uint8) Color {
	r, g, b := cf.Clamped().RGB255()
	return Color{R: r, G: g, B: b, A: a}
}

// Hue returns the i-th of n colours swept over the first 80% of the hue
// circle at saturation 0.7 and value 0.8. Callers pass n >= 1.
func Hue(i, n int) Color {
	if n <= 0 {
		n = 1
	}
	h := 360 * 0.8 * float64(i) / float64(n)
	return fromColorful(colorful.Hsv(h, 0.7, 0.8), 255)
}

// Blend mixes a and b per channel as a*ratio + b*(1-ratio). ratio is
// clamped to [0, 1].
func Blend(a, b Color, ratio float64) Color {
	ratio = math.Max(0, math.Min(1, ratio))
	mixed := b.colorful().BlendRgb(a.colorful(), ratio)
	alpha := float64(a.A)*ratio + float64(b.A)*(1-ratio)
	return fromColorful(mixed, uint8(math.Round(alpha)))
}

// Brighten adds n to every colour channel, saturating at 255.
func Brighten(c Color, n int) Color {
	return Color{R: addClamp(c.R, n), G: addClamp(c.G, n), B: addClamp(c.B, n), A: c.A}
}

// Darken scales every colour channel by 0.7.
func Darken(c Color) Color {
	return Color{
		R: uint8(float64(c.R) * 0.7),
		G: uint8(float64(c.G) * 0.7),
		B: uint8(float64(c.B) * 0.7),
		A: c.A,
	}
}

func addClamp(v uint8, n int) uint8 {
	s := int(v) + n
	switch {
	case s > 255:
		return 255
	case s < 0:
		return 0
	}
	return uint8(s)
}
