package chart

import (
	"math"
	"strconv"
	"strings"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/draw"
)

const (
	tsCorner    = 24
	tsTicks     = 6
	tsLineWidth = 2.5
	tsFillAlpha = 180
	tsLegendOff = 100
	dateLayout  = "Mon, 02 Jan"
)

// TimeSeries draws two hourly series as smoothed filled areas over a shared
// y axis. Both series are laid out by First's days; Second is read by
// position and missing hours count as zero.
type TimeSeries struct {
	First       []aggregate.Day
	Second      []aggregate.Day
	FirstLabel  string
	SecondLabel string
}

// XPosition returns the x coordinate of the i-th hour, never past the right
// edge of the graph area.
func (ts TimeSeries) XPosition(cfg Config, i int) float64 {
	_, _, m, gw, _ := cfg.dims()
	total := aggregate.TotalHours(ts.First)
	if total == 0 {
		return m
	}
	return math.Min(m+gw/float64(total)*float64(i), m+gw)
}

func (ts TimeSeries) Render(cfg Config) []draw.Command {
	_, _, m, gw, gh := cfg.dims()
	pal := cfg.Palette

	cmds := []draw.Command{draw.Rect{
		X: m - 10, Y: m - 10, W: gw + 20, H: gh + 20, Radius: tsCorner, Fill: draw.Transparent,
	}}
	total := aggregate.TotalHours(ts.First)
	if total == 0 {
		return cmds
	}

	first, second := flatten(ts.First, total), flatten(ts.Second, total)
	yMax := max(peak(first), peak(second))
	if yMax <= 0 {
		yMax = 1
	}

	baseline := m + gh
	for tick := int64(0); tick <= tsTicks; tick++ {
		y := baseline - float64(tick)*gh/tsTicks
		cmds = append(cmds,
			line(m-30, y, m+gw-10, y, pal.Grid, 0.5, true),
			label(m-30, y+4, strconv.FormatInt(tick*yMax/tsTicks, 10), 15, draw.AnchorEnd, pal.Text),
		)
	}

	firstPath := ts.area(cfg, first, yMax)
	secondPath := ts.area(cfg, second, yMax)
	cmds = append(cmds,
		draw.Path{Segments: firstPath, Fill: pal.Primary.WithAlpha(tsFillAlpha)},
		draw.Path{Segments: secondPath, Fill: pal.Secondary.WithAlpha(tsFillAlpha)},
		draw.Path{Segments: firstPath, Stroke: &draw.Stroke{Paint: pal.Primary, Width: tsLineWidth, Round: true}},
		draw.Path{Segments: secondPath, Stroke: &draw.Stroke{Paint: pal.Secondary, Width: tsLineWidth, Round: true}},
	)

	hourWidth := gw / float64(total)
	offset := 0
	for _, d := range ts.First {
		center := m + hourWidth*(float64(offset)+float64(len(d.Values))/2)
		cmds = append(cmds, label(center, baseline+28, dateLabel(d), 15, draw.AnchorMiddle, pal.Text))
		offset += len(d.Values)
	}

	ly := baseline + 60
	lx := m + gw/2 - tsLegendOff
	return append(cmds,
		dot(lx, ly, legendDot, pal.Primary),
		label(lx+legendDot+10, ly+5, latest(ts.First)+ts.FirstLabel, 15, draw.AnchorStart, pal.Text),
		dot(lx+120, ly, legendDot, pal.Secondary),
		label(lx+120+legendDot+10, ly+5, latest(ts.Second)+ts.SecondLabel, 15, draw.AnchorStart, pal.Text),
	)
}

// area outlines values as a closed shape: up from the baseline at the left
// edge, along a curve through every hour, and back along the baseline.
func (ts TimeSeries) area(cfg Config, values []int64, yMax int64) []draw.Segment {
	_, _, m, _, gh := cfg.dims()
	baseline := m + gh

	segs := make([]draw.Segment, 0, len(values)+3)
	segs = append(segs, draw.MoveTo{X: m, Y: baseline})
	px, py := m, baseline
	x := m
	for i := 1; i < len(values); i++ {
		x = ts.XPosition(cfg, i)
		y := baseline - float64(values[i])/float64(yMax)*gh
		dx := x - px
		segs = append(segs, draw.CubicTo{C1X: px + dx/3, C1Y: py, C2X: x - dx/3, C2Y: y, X: x, Y: y})
		px, py = x, y
	}
	return append(segs, draw.LineTo{X: x, Y: baseline}, draw.LineTo{X: m, Y: baseline}, draw.Close{})
}

func flatten(days []aggregate.Day, n int) []int64 {
	out := make([]int64, 0, n)
	for _, d := range days {
		out = append(out, d.Values...)
	}
	if len(out) > n {
		return out[:n]
	}
	for len(out) < n {
		out = append(out, 0)
	}
	return out
}

func peak(values []int64) int64 {
	var p int64
	for _, v := range values {
		p = max(p, v)
	}
	return p
}

func latest(days []aggregate.Day) string {
	if len(days) == 0 {
		return "0"
	}
	return strconv.FormatInt(days[len(days)-1].Latest(), 10)
}

func dateLabel(d aggregate.Day) string {
	return strings.ToUpper(strings.ReplaceAll(d.Date.UTC().Format(dateLayout), ".", ""))
}
