package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/draw"
)

const (
	cardWidth   = 220
	cardHeight  = 60
	cardSpacing = 20
	cardCorner  = 12
	cardDot     = 20
	legendDot   = 14
)

// StatusGrid draws one card per item showing how many of Total reports have
// it enabled, tinted from the disabled colour to the enabled colour.
type StatusGrid struct {
	Data          aggregate.GroupedStat
	Total         int64
	EnabledLabel  string
	DisabledLabel string
}

func (s StatusGrid) Render(cfg Config) []draw.Command {
	W, H, m, _, _ := cfg.dims()
	pal := cfg.Palette

	x, y := m, m+40
	cmds := make([]draw.Command, 0, 4*len(s.Data)+4)
	for _, e := range aggregate.ByKey(s.Data) {
		ratio := 0.0
		if s.Total > 0 {
			ratio = float64(e.Value) / float64(s.Total)
		}
		c := draw.Blend(pal.Enabled, pal.Disabled, ratio)

		cmds = append(cmds,
			draw.Rect{
				X: x, Y: y, W: cardWidth, H: cardHeight, Radius: cardCorner,
				Fill:   c.WithAlpha(30),
				Stroke: &draw.Stroke{Paint: c, Width: 1.5},
			},
			dot(x+15, y+cardHeight/2, cardDot, c),
			label(x+45, y+25, strings.ToUpper(e.Key), 12, draw.AnchorStart, pal.Text),
			label(x+45, y+40, fmt.Sprintf("%d/%d (%.0f%%)", e.Value, s.Total, ratio*100), 15, draw.AnchorStart, pal.Text),
		)

		x += cardWidth + cardSpacing
		if x+cardWidth > W-m {
			x = m
			y += cardHeight + cardSpacing
		}
	}

	lx := W/2 - 100
	ly := math.Min(y+cardHeight+30, H-m-30)
	return append(cmds,
		dot(lx, ly, legendDot, pal.Enabled),
		label(lx+legendDot+10, ly+5, s.EnabledLabel, 15, draw.AnchorStart, pal.Text),
		dot(lx+120, ly, legendDot, pal.Disabled),
		label(lx+120+legendDot+10, ly+5, s.DisabledLabel, 15, draw.AnchorStart, pal.Text),
	)
}
