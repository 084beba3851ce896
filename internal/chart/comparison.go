package chart

import (
	"math"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/draw"
)

const (
	cmpBarWidth  = 30
	cmpBarGap    = 15
	cmpGroupGap  = 40
	cmpMinHeight = 1
	cmpLegend    = 15
	cmpCorner    = 8
	cmpSide      = 50
	cmpSteps     = 6
	cmpLabelMax  = 12
)

// Comparison draws a pair of bars per category against two independent
// y axes: First on the left, Second on the right. Groups are ordered by
// First+Second, largest first.
type Comparison struct {
	Data        aggregate.PairStat
	FirstLabel  string
	SecondLabel string
}

func (c Comparison) Render(cfg Config) []draw.Command {
	W, H, m, _, gh := cfg.dims()
	pal := cfg.Palette
	data := aggregate.SortPairsBySumDesc(c.Data)

	var maxFirst, maxSecond int64
	for _, p := range data {
		maxFirst = max(maxFirst, p.First)
		maxSecond = max(maxSecond, p.Second)
	}
	if maxFirst <= 0 {
		maxFirst = 1
	}
	if maxSecond <= 0 {
		maxSecond = 1
	}

	chartWidth := float64(len(data)*(2*cmpBarWidth+cmpBarGap+cmpGroupGap) - cmpGroupGap)
	scale := 1.0
	if avail := W - 2*cmpSide; chartWidth > avail {
		scale = avail / chartWidth
	}

	baseline := m + gh
	cmds := []draw.Command{line(cmpSide, baseline, W-cmpSide-30, baseline, pal.Grid, 1.5, false)}
	cmds = c.yAxis(cmds, cfg, cmpSide-25, true, maxFirst, pal.Primary)
	cmds = c.yAxis(cmds, cfg, W-cmpSide, false, maxSecond, pal.Secondary)

	barW, gap, groupGap := cmpBarWidth*scale, cmpBarGap*scale, cmpGroupGap*scale
	x := (W - math.Max(0, chartWidth)*scale) / 2
	for _, p := range data {
		cmds = append(cmds,
			bar(x, baseline, barW, barHeight(p.First, maxFirst, gh), pal.Primary),
			bar(x+barW+gap, baseline, barW, barHeight(p.Second, maxSecond, gh), pal.Secondary),
			label(x+barW+gap/2, H-m+20, truncate(p.Key), 15, draw.AnchorMiddle, pal.Text),
		)
		x += 2*barW + gap + groupGap
	}

	ly := baseline + 40
	cx := W / 2
	for _, item := range []struct {
		x     float64
		color draw.Color
		text  string
	}{
		{cx - 100, pal.Primary, c.FirstLabel},
		{cx + 30, pal.Secondary, c.SecondLabel},
	} {
		cmds = append(cmds,
			draw.Rect{X: item.x, Y: ly, W: cmpLegend, H: cmpLegend, Fill: item.color},
			label(item.x+cmpLegend+5, ly+cmpLegend-3, item.text, 15, draw.AnchorStart, pal.Text),
		)
	}
	return cmds
}

func (Comparison) yAxis(cmds []draw.Command, cfg Config, x float64, left bool, top int64, color draw.Color) []draw.Command {
	W, _, m, _, gh := cfg.dims()
	pal := cfg.Palette

	cmds = append(cmds, line(x, m, x, m+gh, color, 2, false))
	for i := int64(0); i <= cmpSteps; i++ {
		y := m + gh - gh*float64(i)/cmpSteps
		text := compact(top * i / cmpSteps)
		if left {
			cmds = append(cmds, label(x-5, y+5, text, 15, draw.AnchorEnd, pal.Text))
		} else {
			cmds = append(cmds, label(x+5, y+5, text, 15, draw.AnchorStart, pal.Text))
		}
		cmds = append(cmds, line(cmpSide, y, W-cmpSide-30, y, pal.Grid, 0.5, false))
	}
	return cmds
}

func barHeight(v, peak int64, gh float64) float64 {
	return math.Max(float64(v)/float64(peak)*gh, cmpMinHeight)
}

func bar(x, baseline, w, h float64, c draw.Color) draw.Rect {
	return draw.Rect{
		X: x, Y: baseline - h, W: w, H: h, Radius: cmpCorner,
		Fill:   c,
		Stroke: &draw.Stroke{Paint: draw.Darken(c), Width: 1},
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) > cmpLabelMax {
		return string(r[:9]) + "..."
	}
	return s
}
