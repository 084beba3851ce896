package main

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/tinytelemetry/pulse/internal/aggregate"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// barColor spreads n bars around the hue wheel.
func barColor(i, n int) lipgloss.Color {
	if n <= 0 {
		n = 1
	}
	c := colorful.Hsv(float64(i)*360/float64(n), 0.6, 0.9)
	return lipgloss.Color(c.Hex())
}

// renderDistribution draws stat as a terminal bar chart with a legend.
func renderDistribution(name string, stat aggregate.GroupedStat, width, height int) string {
	if len(stat) == 0 {
		return labelStyle.Render(name) + "\n" + dimStyle.Render("no data")
	}

	maxBars := max(1, width/2)
	shown := stat
	if len(shown) > maxBars {
		shown = shown[:maxBars]
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for i, e := range shown {
		style := lipgloss.NewStyle().Foreground(barColor(i, len(shown))).Background(barColor(i, len(shown)))
		bc.Push(barchart.BarData{
			Label:  "",
			Values: []barchart.BarValue{{Name: e.Key, Value: float64(e.Value), Style: style}},
		})
	}
	bc.Draw()

	total := stat.Total()
	var legend []string
	for i, e := range shown {
		swatch := lipgloss.NewStyle().Foreground(barColor(i, len(shown))).Render("■")
		legend = append(legend, fmt.Sprintf("%s %-24s %8d %s", swatch, e.Key, e.Value, dimStyle.Render(percent(e.Value, total))))
	}
	if hidden := len(stat) - len(shown); hidden > 0 {
		legend = append(legend, dimStyle.Render(fmt.Sprintf("… %d more", hidden)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render(name)+dimStyle.Render(fmt.Sprintf("  total %d", total)),
		bc.View(),
		strings.Join(legend, "\n"),
	)
}

func percent(v, total int64) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(v)*100/float64(total))
}
