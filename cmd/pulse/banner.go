package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig, socketUp bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	row := func(ok bool, label, value string, style lipgloss.Style) string {
		mark := dot
		if ok {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, style.Render(value))
	}
	onOff := func(on bool, value string) string {
		if on {
			return value
		}
		return "disabled"
	}

	logo := cyan.Bold(true).Render(`
    ╔═╗╦ ╦╦  ╔═╗╔═╗
    ╠═╝║ ║║  ╚═╗║╣
    ╩  ╚═╝╩═╝╚═╝╚═╝`)

	separator := dim.Render("    ─────────────────────────────────")

	lines := []string{"", logo, "    " + dim.Render("v"+version), "", separator, ""}

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines,
		row(true, "HTTP API", cfg.APIAddr, cyan),
		row(true, "Charts", "/api/pulse/metrics/svg", cyan),
		row(cfg.AdminAddr != "", "Admin API", onOff(cfg.AdminAddr != "", cfg.AdminAddr), cyan),
		row(socketUp, "Unix Socket", onOff(socketUp, shortenPath(cfg.SocketPath)), cyan),
		"",
	)

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines,
		row(true, "Database", shortenPath(cfg.DBPath), dim),
		row(cfg.JournalEnabled, "Journal", onOff(cfg.JournalEnabled, shortenPath(cfg.JournalPath)), dim),
		row(cfg.BackupEnabled, "Backups", onOff(cfg.BackupEnabled, shortenPath(cfg.BackupLocalDir)), dim),
	)
	if cfg.RetentionDays > 0 {
		lines = append(lines, row(true, "Retention", fmt.Sprintf("%d days", cfg.RetentionDays), dim))
	} else {
		lines = append(lines, row(false, "Retention", "keep forever", dim))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"), "")
	lines = append(lines,
		row(true, "Throttle", fmt.Sprintf("%s / %d clients", cfg.ThrottleWindow, cfg.ThrottleSize), dim),
		row(cfg.GeoEnabled, "Geolocation", onOff(cfg.GeoEnabled, cfg.GeoBaseURL), dim),
		row(true, "Chart Cache", fmt.Sprintf("%d entries", cfg.CacheSize), dim),
		"",
	)

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", shortenPath(cfg.ConfigPath), dim))
	} else {
		lines = append(lines, row(false, "Config File", "default (no file)", dim))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
