package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/socketrpc"
)

var errUsage = errors.New("usage")

// statsClient is the part of socketrpc.Client the commands use.
type statsClient interface {
	SnapshotCount() (int64, error)
	LatestSnapshot() (time.Time, error)
	ListReports() ([]string, error)
	Distribution(name string) (aggregate.GroupedStat, error)
	RenderReport(name string) (string, error)
}

func runCommand(cfg cliConfig, args []string) error {
	client, err := socketrpc.Dial(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to pulse server at %s: %w\nIs the server running? Start it with: pulse", cfg.SocketPath, err)
	}
	defer client.Close()

	return execute(client, cfg, args, os.Stdout)
}

func execute(client statsClient, cfg cliConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "status":
		return cmdStatus(client, out)
	case "reports":
		names, err := client.ListReports()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
		return nil
	case "preview":
		if len(rest) != 1 {
			return fmt.Errorf("%w: pulsectl preview <report>", errUsage)
		}
		stat, err := client.Distribution(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderDistribution(rest[0], stat, cfg.ChartWidth, cfg.ChartHeight))
		return nil
	case "svg":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("%w: pulsectl svg <report> [file]", errUsage)
		}
		doc, err := client.RenderReport(rest[0])
		if err != nil {
			return err
		}
		if len(rest) == 2 {
			return os.WriteFile(rest[1], []byte(doc), 0o644)
		}
		_, err = io.WriteString(out, doc)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func cmdStatus(client statsClient, out io.Writer) error {
	count, err := client.SnapshotCount()
	if err != nil {
		return err
	}
	latest, err := client.LatestSnapshot()
	if err != nil {
		return err
	}

	latestText := "never"
	if !latest.IsZero() {
		latestText = latest.Local().Format(time.RFC3339)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Snapshots:"), count)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Latest:   "), latestText)
	_, err = io.WriteString(out, b.String())
	return err
}
