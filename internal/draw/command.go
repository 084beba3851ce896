// Package draw defines the backend-neutral drawing vocabulary that chart
// renderers emit and encoders serialise: a closed set of command variants,
// paints, colours, canvas geometry, and the chart palette.
package draw

// Command is one drawing instruction. The set of variants is closed:
// Rect, Oval, Path and Text. A slice of commands is painted in order.
type Command interface {
	command()
}

// Rect is an axis-aligned rectangle with optionally rounded corners.
type Rect struct {
	X, Y, W, H float64
	Radius     float64
	Fill       Paint
	Stroke     *Stroke
}

// Oval is an ellipse given by its centre and radii.
type Oval struct {
	CX, CY float64
	RX, RY float64
	Fill   Paint
	Stroke *Stroke
}

// Path is an outline built from segments.
type Path struct {
	Segments []Segment
	Fill     Paint
	Stroke   *Stroke
}

// Anchor is the horizontal alignment of text relative to its X.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorMiddle
	AnchorEnd
)

// Text is a single line of text; Y is the baseline.
type Text struct {
	X, Y    float64
	Content string
	Size    float64
	Bold    bool
	Anchor  Anchor
	Fill    Paint
}

func (Rect) command() {}
func (Oval) command() {}
func (Path) command() {}
func (Text) command() {}

// Segment is one step of a Path: MoveTo, LineTo, CubicTo or Close.
type Segment interface {
	segment()
}

type MoveTo struct{ X, Y float64 }

type LineTo struct{ X, Y float64 }

// CubicTo draws a cubic Bézier curve from the current point to (X, Y).
type CubicTo struct {
	C1X, C1Y float64
	C2X, C2Y float64
	X, Y     float64
}

type Close struct{}

func (MoveTo) segment()  {}
func (LineTo) segment()  {}
func (CubicTo) segment() {}
func (Close) segment()   {}

// Stroke outlines a shape. Round selects round joins and caps.
type Stroke struct {
	Paint Paint
	Width float64
	Round bool
}

// Canvas is the drawing area. The graph area is the canvas minus Margin on
// every side.
type Canvas struct {
	Width  int
	Height int
	Margin float64
}

func (c Canvas) GraphWidth() float64 {
	return float64(c.Width) - 2*c.Margin
}

func (c Canvas) GraphHeight() float64 {
	return float64(c.Height) - 2*c.Margin
}
