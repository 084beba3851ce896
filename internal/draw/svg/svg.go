// Package svg encodes drawing commands as a standalone SVG 1.1 document.
package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/tinytelemetry/pulse/internal/draw"
)

const fontFamily = "Segoe UI, sans-serif"

// Encoder writes SVG. The zero value is ready to use.
type Encoder struct{}

var _ draw.Encoder = Encoder{}

// Encode returns the SVG document for cmds on a width×height canvas.
func (e Encoder) Encode(cmds []draw.Command, width, height int) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(&buf, cmds, width, height); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo streams the SVG document to w. Write failures are reported as
// *draw.RenderError.
func (Encoder) EncodeTo(w io.Writer, cmds []draw.Command, width, height int) error {
	enc := &encoder{w: w, ids: make(map[int]string)}
	enc.collectGradients(cmds)

	enc.printf(`<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	enc.printf(`<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%d" height="%d" viewBox="0 0 %d %d" font-family="%s">`+"\n",
		width, height, width, height, fontFamily)
	enc.writeDefs()

	for i, cmd := range cmds {
		if enc.err != nil {
			break
		}
		if err := enc.writeCommand(i, cmd); err != nil {
			return err
		}
	}
	enc.printf("</svg>\n")

	if enc.err != nil {
		return &draw.RenderError{Op: "write svg", Err: enc.err}
	}
	return nil
}

type gradient struct {
	id    string
	paint draw.Paint
}

type encoder struct {
	w         io.Writer
	err       error
	gradients []gradient
	// ids maps paint slot (command index*2, +1 for stroke) to gradient id.
	ids map[int]string
}

func (e *encoder) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *encoder) collectGradients(cmds []draw.Command) {
	for i, cmd := range cmds {
		fill, stroke := paints(cmd)
		e.register(2*i, fill)
		if stroke != nil {
			e.register(2*i+1, stroke.Paint)
		}
	}
}

func (e *encoder) register(slot int, p draw.Paint) {
	switch p.(type) {
	case draw.LinearGradient, draw.RadialGradient:
		id := "g" + strconv.Itoa(len(e.gradients))
		e.gradients = append(e.gradients, gradient{id: id, paint: p})
		e.ids[slot] = id
	}
}

func paints(cmd draw.Command) (draw.Paint, *draw.Stroke) {
	switch c := cmd.(type) {
	case draw.Rect:
		return c.Fill, c.Stroke
	case draw.Oval:
		return c.Fill, c.Stroke
	case draw.Path:
		return c.Fill, c.Stroke
	case draw.Text:
		return c.Fill, nil
	}
	return nil, nil
}

func (e *encoder) writeDefs() {
	if len(e.gradients) == 0 {
		return
	}
	e.printf("<defs>\n")
	for _, g := range e.gradients {
		switch p := g.paint.(type) {
		case draw.LinearGradient:
			e.printf(`<linearGradient id="%s" gradientUnits="userSpaceOnUse" x1="%s" y1="%s" x2="%s" y2="%s">`,
				g.id, num(p.X1), num(p.Y1), num(p.X2), num(p.Y2))
			e.writeStop(0, p.From)
			e.writeStop(1, p.To)
			e.printf("</linearGradient>\n")
		case draw.RadialGradient:
			e.printf(`<radialGradient id="%s" gradientUnits="userSpaceOnUse" cx="%s" cy="%s" r="%s">`,
				g.id, num(p.CX), num(p.CY), num(p.R))
			e.writeStop(0, p.Inner)
			e.writeStop(1, p.Outer)
			e.printf("</radialGradient>\n")
		}
	}
	e.printf("</defs>\n")
}

func (e *encoder) writeStop(offset float64, c draw.Color) {
	e.printf(`<stop offset="%s" stop-color="%s"`, num(offset), rgb(c))
	if c.A != 255 {
		e.printf(` stop-opacity="%s"`, num(c.Opacity()))
	}
	e.printf("/>")
}

func (e *encoder) writeCommand(i int, cmd draw.Command) error {
	switch c := cmd.(type) {
	case draw.Rect:
		e.printf(`<rect x="%s" y="%s" width="%s" height="%s"`, num(c.X), num(c.Y), num(c.W), num(c.H))
		if c.Radius > 0 {
			e.printf(` rx="%s" ry="%s"`, num(c.Radius), num(c.Radius))
		}
		e.writePaint(i, c.Fill, c.Stroke)
		e.printf("/>\n")
	case draw.Oval:
		e.printf(`<ellipse cx="%s" cy="%s" rx="%s" ry="%s"`, num(c.CX), num(c.CY), num(c.RX), num(c.RY))
		e.writePaint(i, c.Fill, c.Stroke)
		e.printf("/>\n")
	case draw.Path:
		e.printf(`<path d="%s"`, pathData(c.Segments))
		e.writePaint(i, c.Fill, c.Stroke)
		e.printf("/>\n")
	case draw.Text:
		e.printf(`<text x="%s" y="%s" font-size="%s"`, num(c.X), num(c.Y), num(c.Size))
		if c.Bold {
			e.printf(` font-weight="bold"`)
		}
		switch c.Anchor {
		case draw.AnchorMiddle:
			e.printf(` text-anchor="middle"`)
		case draw.AnchorEnd:
			e.printf(` text-anchor="end"`)
		}
		e.writePaint(i, c.Fill, nil)
		e.printf(">%s</text>\n", escape(c.Content))
	default:
		return &draw.RenderError{Op: "encode", Err: fmt.Errorf("unsupported command %T", cmd)}
	}
	return nil
}

func (e *encoder) writePaint(i int, fill draw.Paint, stroke *draw.Stroke) {
	e.writeAttr("fill", fill, e.ids[2*i])
	if stroke == nil || stroke.Paint == nil {
		return
	}
	e.writeAttr("stroke", stroke.Paint, e.ids[2*i+1])
	e.printf(` stroke-width="%s"`, num(stroke.Width))
	if stroke.Round {
		e.printf(` stroke-linejoin="round" stroke-linecap="round"`)
	}
}

func (e *encoder) writeAttr(name string, p draw.Paint, gradientID string) {
	switch c := p.(type) {
	case nil:
		if name == "fill" {
			e.printf(` fill="none"`)
		}
	case draw.Color:
		e.printf(` %s="%s"`, name, rgb(c))
		if c.A != 255 {
			e.printf(` %s-opacity="%s"`, name, num(c.Opacity()))
		}
	default:
		e.printf(` %s="url(#%s)"`, name, gradientID)
	}
}

func pathData(segs []draw.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch s := s.(type) {
		case draw.MoveTo:
			b.WriteString("M" + num(s.X) + " " + num(s.Y))
		case draw.LineTo:
			b.WriteString("L" + num(s.X) + " " + num(s.Y))
		case draw.CubicTo:
			b.WriteString("C" + num(s.C1X) + " " + num(s.C1Y) + " " +
				num(s.C2X) + " " + num(s.C2Y) + " " + num(s.X) + " " + num(s.Y))
		case draw.Close:
			b.WriteString("Z")
		}
	}
	return b.String()
}

func rgb(c draw.Color) string {
	return "rgb(" + strconv.Itoa(int(c.R)) + "," + strconv.Itoa(int(c.G)) + "," + strconv.Itoa(int(c.B)) + ")"
}

// num formats v with at most two decimals and no trailing zeros.
func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	r := math.Round(v*100) / 100
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
