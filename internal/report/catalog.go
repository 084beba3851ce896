// Package report maps chart names to a query window, an aggregation and a
// renderer, and renders named charts end to end.
package report

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/chart"
	"github.com/tinytelemetry/pulse/internal/model"
)

// Main is the players/servers time series served at the bare SVG path.
const Main = "players-servers"

const gib = 1 << 30

// Report is one named chart.
type Report struct {
	Name string
	// Since returns the exclusive lower bound of the query window.
	Since func(now time.Time) time.Time
	// Large selects the status-grid canvas.
	Large bool

	stat  func([]model.Snapshot) (aggregate.GroupedStat, error)
	chart func(in input) (chart.Renderer, error)
}

type input struct {
	snaps []model.Snapshot
	now   time.Time
	rng   *rand.Rand
}

// HasDistribution reports whether the chart is drawn from a single
// GroupedStat.
func (r Report) HasDistribution() bool { return r.stat != nil }

// WeekStart returns the first hour bucket of the time series window: the
// start of the UTC day six days before now.
func WeekStart(now time.Time) time.Time {
	return aggregate.TruncateDay(now).AddDate(0, 0, -6)
}

func lastHour(now time.Time) time.Time {
	return now.Add(-model.DefaultDistributionWindow)
}

type order func(aggregate.GroupedStat) (aggregate.GroupedStat, error)

func infallible(f func(aggregate.GroupedStat) aggregate.GroupedStat) order {
	return func(g aggregate.GroupedStat) (aggregate.GroupedStat, error) { return f(g), nil }
}

var (
	byValue   = infallible(aggregate.ByValueDesc)
	byVersion = infallible(aggregate.ByVersionDesc)
	byNumber  = order(aggregate.ByNumericKeyDesc)
)

func counted(key aggregate.KeyFunc, sorted order) func([]model.Snapshot) (aggregate.GroupedStat, error) {
	return func(snaps []model.Snapshot) (aggregate.GroupedStat, error) {
		return sorted(aggregate.CountBy(snaps, key))
	}
}

func bars(name string, key aggregate.KeyFunc, sorted order, suffix, empty string) Report {
	r := Report{Name: name, Since: lastHour, stat: counted(key, sorted)}
	r.chart = func(in input) (chart.Renderer, error) {
		g, err := r.stat(in.snaps)
		if err != nil {
			return nil, err
		}
		return chart.BarDistribution{Data: g, ValueSuffix: suffix, EmptyLabel: empty}, nil
	}
	return r
}

func circles(name string, key aggregate.KeyFunc) Report {
	r := Report{Name: name, Since: lastHour, stat: counted(key, byValue)}
	r.chart = func(in input) (chart.Renderer, error) {
		g, err := r.stat(in.snaps)
		if err != nil {
			return nil, err
		}
		return chart.CircleDistribution{Data: g, ShowPercentage: true, Rand: in.rng}, nil
	}
	return r
}

func playersServers() Report {
	return Report{
		Name: Main,
		Since: func(now time.Time) time.Time {
			// SnapshotsSince is exclusive; step back so the first bucket is whole.
			return WeekStart(now).Add(-time.Nanosecond)
		},
		chart: func(in input) (chart.Renderer, error) {
			start := WeekStart(in.now)
			players := aggregate.SumByHour(in.snaps, aggregate.PlayerCount)
			servers := aggregate.CountByHour(in.snaps)
			return chart.TimeSeries{
				First:       aggregate.DaySeries(players, start, in.now),
				Second:      aggregate.DaySeries(servers, start, in.now),
				FirstLabel:  " players",
				SecondLabel: " servers",
			}, nil
		},
	}
}

func modulesStatus() Report {
	stat := func(snaps []model.Snapshot) (aggregate.GroupedStat, error) {
		return aggregate.ModuleEnabledCounts(snaps), nil
	}
	return Report{
		Name:  "modules-status",
		Since: lastHour,
		Large: true,
		stat:  stat,
		chart: func(in input) (chart.Renderer, error) {
			g, _ := stat(in.snaps)
			return chart.StatusGrid{
				Data:          g,
				Total:         int64(len(in.snaps)),
				EnabledLabel:  "Enabled",
				DisabledLabel: "Disabled",
			}, nil
		},
	}
}

func serverTypes() Report {
	return Report{
		Name:  "server-types",
		Since: lastHour,
		chart: func(in input) (chart.Renderer, error) {
			return chart.Comparison{
				Data:        aggregate.PairBy(in.snaps, serverCore, aggregate.PlayerCount, aggregate.One),
				FirstLabel:  "Players",
				SecondLabel: "Servers",
			}, nil
		},
	}
}

// Key functions.
var (
	serverCore      aggregate.KeyFunc = func(s *model.Snapshot) string { return s.ServerCore }
	serverVersion   aggregate.KeyFunc = func(s *model.Snapshot) string { return s.ServerVersion }
	onlineMode      aggregate.KeyFunc = func(s *model.Snapshot) string { return s.OnlineMode }
	projectVersion  aggregate.KeyFunc = func(s *model.Snapshot) string { return s.ProjectVersion }
	projectLanguage aggregate.KeyFunc = func(s *model.Snapshot) string { return s.ProjectLanguage }
	proxyMode       aggregate.KeyFunc = func(s *model.Snapshot) string { return s.ProxyMode }
	databaseMode    aggregate.KeyFunc = func(s *model.Snapshot) string { return s.DatabaseMode }
	location        aggregate.KeyFunc = func(s *model.Snapshot) string { return s.Location }
	runtimeVersion  aggregate.KeyFunc = func(s *model.Snapshot) string { return s.RuntimeVersion }
	osArchitecture  aggregate.KeyFunc = func(s *model.Snapshot) string { return s.OSArchitecture }
	osName          aggregate.KeyFunc = func(s *model.Snapshot) string { return s.OSName }
	cpuCores        aggregate.KeyFunc = func(s *model.Snapshot) string { return strconv.Itoa(s.CPUCores) }

	// ramGiB rounds total memory up to whole GiB.
	ramGiB aggregate.KeyFunc = func(s *model.Snapshot) string {
		return strconv.FormatInt(int64(math.Ceil(float64(s.TotalRAM)/gib)), 10)
	}
)

// catalog lists every chart in route order.
var catalog = []Report{
	playersServers(),
	bars("server-versions", serverVersion, byVersion, "", ""),
	bars("ram-usage", ramGiB, byNumber, " GB", ""),
	modulesStatus(),
	serverTypes(),
	bars("online-mode", onlineMode, byValue, "", ""),
	bars("project-versions", projectVersion, byVersion, "", "-"),
	bars("project-languages", projectLanguage, byValue, "", ""),
	bars("proxy-modes", proxyMode, byValue, "", ""),
	bars("database-modes", databaseMode, byValue, "", ""),
	circles("server-locations", location),
	bars("java-versions", runtimeVersion, byVersion, "", ""),
	bars("core-counts", cpuCores, byNumber, " cores", ""),
	bars("system-archs", osArchitecture, byValue, "", ""),
	circles("operation-systems", osName),
}

var byName = func() map[string]Report {
	m := make(map[string]Report, len(catalog))
	for _, r := range catalog {
		m[r.Name] = r
	}
	return m
}()
