package chart

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/draw"
	"github.com/tinytelemetry/pulse/internal/pack"
)

var shadow = draw.RGBA(0, 0, 0, 120)

// CircleDistribution draws each category as a circle sized by its share of
// the total, packed around the largest one.
type CircleDistribution struct {
	Data           aggregate.GroupedStat
	LabelSuffix    string
	ValueSuffix    string
	ShowPercentage bool
	// Rand seeds fallback placement; nil is time-seeded.
	Rand *rand.Rand
}

func (c CircleDistribution) Render(cfg Config) []draw.Command {
	n := len(c.Data)
	if n == 0 {
		return nil
	}

	items := make([]pack.Item, n)
	for i, e := range c.Data {
		items[i] = pack.Item{Key: e.Key, Value: e.Value}
	}
	p := pack.New(float64(cfg.Canvas.Width), float64(cfg.Canvas.Height), n, c.Rand)
	circles := p.Pack(items)

	cmds := make([]draw.Command, 0, 5*n)
	for _, ci := range circles {
		base := draw.Hue(ci.Index, n)
		cmds = append(cmds, draw.Oval{
			CX: ci.X, CY: ci.Y, RX: ci.R, RY: ci.R,
			Fill: draw.LinearGradient{
				X1: ci.X - ci.R/2, Y1: ci.Y - ci.R/2,
				X2: ci.X + ci.R/2, Y2: ci.Y + ci.R/2,
				From: base, To: draw.Brighten(base, 30),
			},
			Stroke: &draw.Stroke{Paint: draw.Brighten(base, 40), Width: 2.5},
		})
	}

	for _, ci := range circles {
		size := math.Max(10, math.Min(20, math.Floor(ci.R/3)))
		lines := pack.WrapLabel(ci.Key+c.LabelSuffix, ci.R)
		y := ci.Y - 8
		if len(lines) == 2 {
			y = ci.Y - 16
		}
		valueY := ci.Y + 10
		for i, l := range lines {
			ly := y + float64(i)*14
			cmds = appendShadowed(cmds, l, ci.X, ly, size)
			valueY = math.Max(valueY, ly+size)
		}
		cmds = appendShadowed(cmds, c.valueText(ci), ci.X, valueY, size)
	}
	return cmds
}

func (c CircleDistribution) valueText(ci pack.Circle) string {
	var s string
	if c.ValueSuffix != "" {
		s = strconv.FormatInt(ci.Value, 10) + c.ValueSuffix
	}
	if c.ShowPercentage {
		if s != "" {
			s += " "
		}
		s += fmt.Sprintf("%.1f%%", ci.Ratio*100)
	}
	return s
}

func appendShadowed(cmds []draw.Command, s string, x, y, size float64) []draw.Command {
	if s == "" {
		return cmds
	}
	return append(cmds,
		label(x+1, y+1, s, size, draw.AnchorMiddle, shadow),
		label(x, y, s, size, draw.AnchorMiddle, draw.White),
	)
}
