// Package chart renders aggregated statistics into drawing commands.
//
// Renderers are plain values holding their input data. Render is pure: the
// same renderer and config always yield the same commands (the circle chart
// given the same seeded Rand), and degenerate input yields empty or
// near-empty output rather than an error.
package chart

import (
	"strconv"

	"github.com/tinytelemetry/pulse/internal/draw"
)

// Renderer turns its data into an ordered list of drawing commands.
type Renderer interface {
	Render(cfg Config) []draw.Command
}

// Config is the canvas and palette a renderer draws with.
type Config struct {
	Canvas  draw.Canvas
	Palette draw.Palette
}

// DefaultConfig is the 1200×600 canvas used by most charts.
func DefaultConfig() Config {
	return Config{
		Canvas:  draw.Canvas{Width: 1200, Height: 600, Margin: 80},
		Palette: draw.DefaultPalette(),
	}
}

// StatusGridConfig is the larger canvas used by the status grid.
func StatusGridConfig() Config {
	return Config{
		Canvas:  draw.Canvas{Width: 2400, Height: 1500, Margin: 80},
		Palette: draw.DefaultPalette(),
	}
}

func (c Config) dims() (w, h, m, gw, gh float64) {
	return float64(c.Canvas.Width), float64(c.Canvas.Height), c.Canvas.Margin,
		c.Canvas.GraphWidth(), c.Canvas.GraphHeight()
}

func label(x, y float64, s string, size float64, anchor draw.Anchor, fill draw.Paint) draw.Text {
	return draw.Text{X: x, Y: y, Content: s, Size: size, Bold: true, Anchor: anchor, Fill: fill}
}

func line(x1, y1, x2, y2 float64, paint draw.Paint, width float64, round bool) draw.Path {
	return draw.Path{
		Segments: []draw.Segment{draw.MoveTo{X: x1, Y: y1}, draw.LineTo{X: x2, Y: y2}},
		Stroke:   &draw.Stroke{Paint: paint, Width: width, Round: round},
	}
}

// dot is a filled circle whose bounding box has its top-left corner at x
// and its vertical centre at cy.
func dot(x, cy, size float64, fill draw.Paint) draw.Oval {
	r := size / 2
	return draw.Oval{CX: x + r, CY: cy, RX: r, RY: r, Fill: fill}
}

// compact formats axis values as 12, 3K or 4M.
func compact(v int64) string {
	switch {
	case v >= 1_000_000:
		return strconv.FormatInt(v/1_000_000, 10) + "M"
	case v >= 1_000:
		return strconv.FormatInt(v/1_000, 10) + "K"
	}
	return strconv.FormatInt(v, 10)
}
