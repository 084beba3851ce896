package chart

import (
	"math"
	"strconv"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/draw"
)

const (
	barCorner   = 10
	barMinWidth = 30
	barMaxWidth = 80
	barSpacing  = 15
	barBottom   = 40
)

// BarDistribution draws one rounded bar per category, in data order,
// centred on the canvas.
type BarDistribution struct {
	Data aggregate.GroupedStat
	// ValueSuffix is appended to each category label, e.g. " GB".
	ValueSuffix string
	// EmptyLabel replaces an empty category key.
	EmptyLabel string
}

func (b BarDistribution) Render(cfg Config) []draw.Command {
	n := float64(len(b.Data))
	if n == 0 {
		return nil
	}
	W, H, m, _, gh := cfg.dims()
	text := cfg.Palette.Text

	width := (W - 2*m - (n-1)*barSpacing) / n
	width = math.Min(barMaxWidth, math.Max(barMinWidth, width))
	total := n*width + (n-1)*barSpacing
	x := (W - total) / 2

	peak := float64(b.Data.Max())
	if peak <= 0 {
		peak = 1
	}

	cmds := make([]draw.Command, 0, 3*len(b.Data))
	for i, e := range b.Data {
		h := math.Max(0, float64(e.Value)/peak*(gh-barBottom))
		top := H - m - h - barBottom
		cx := x + width/2

		name := e.Key
		if name == "" && b.EmptyLabel != "" {
			name = b.EmptyLabel
		}

		cmds = append(cmds,
			draw.Rect{X: x, Y: top, W: width, H: h, Radius: barCorner, Fill: draw.Hue(i, len(b.Data))},
			label(cx, top-5, strconv.FormatInt(e.Value, 10), 15, draw.AnchorMiddle, text),
			label(cx, H-m-15, name+b.ValueSuffix, 12, draw.AnchorMiddle, text),
		)
		x += width + barSpacing
	}
	return cmds
}
