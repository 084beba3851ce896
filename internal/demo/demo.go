// Package demo generates synthetic snapshots so a fresh install has charts to show.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/model"
)

// Defaults used by the seed-demo-data startup path.
const (
	DefaultServers = 5
	DefaultDays    = 10
)

var (
	serverCores = []string{"Paper", "Spigot", "Purpur", "Fabric", "Forge", "Folia", "Bukkit", "Sponge", "Random", "Leaves", "Leaf", "1", "2", "3", "4"}
	osNames     = []string{"Linux", "Windows", "macOS"}
	locations   = []string{"Russia", "USA", "Germany", "Japan", "Brazil"}
	javaVersion = []string{"8", "11", "17"}
	proxyModes  = []string{"BungeeCord", "Velocity", "Waterfall", "None"}
	dbModes     = []string{"remote", "embedded", "cloud"}
	languages   = []string{"Java", "Kotlin", "Groovy"}
	osVersions  = []string{"10", "11", "22.04", "2022"}
)

// Generate returns one snapshot per server per hour for days days. The
// first hour is now - days*24h + 1h. OS, architecture, location, and the
// major part of the server version follow from the server index; every
// other field is drawn from rng.
func Generate(now time.Time, servers, days int, rng *rand.Rand) []model.Snapshot {
	if servers <= 0 || days <= 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}

	start := now.UTC().Add(-time.Duration(days)*24*time.Hour + time.Hour)
	out := make([]model.Snapshot, 0, servers*days*24)
	for server := 0; server < servers; server++ {
		for day := 0; day < days; day++ {
			for hour := 0; hour < 24; hour++ {
				at := start.Add(time.Duration(day*24+hour) * time.Hour)
				out = append(out, snapshot(server, at, rng))
			}
		}
	}
	return out
}

func snapshot(server int, at time.Time, rng *rand.Rand) model.Snapshot {
	arch := "amd64"
	if server%2 == 1 {
		arch = "arm64"
	}
	return model.Snapshot{
		ID:              uuid.NewString(),
		ServerCore:      pick(rng, serverCores),
		ServerVersion:   fmt.Sprintf("1.%d.%d", 20-server, rng.IntN(4)+1),
		OSName:          osNames[server%len(osNames)],
		OSVersion:       pick(rng, osVersions),
		OSArchitecture:  arch,
		RuntimeVersion:  pick(rng, javaVersion),
		CPUCores:        rng.IntN(16) + 1,
		TotalRAM:        (rng.Int64N(99) + 1) << 30,
		Location:        locations[server%len(locations)],
		ProjectVersion:  fmt.Sprintf("1.%d.0", rng.IntN(5)),
		ProjectLanguage: pick(rng, languages),
		OnlineMode:      strconv.FormatBool(rng.IntN(2) == 1),
		ProxyMode:       pick(rng, proxyModes),
		DatabaseMode:    pick(rng, dbModes),
		PlayerCount:     rng.IntN(11),
		Modules: map[string]string{
			"core":       "enabled",
			"spit":       "disabled",
			"chat":       flag(rng),
			"anti-cheat": flag(rng),
		},
		CreatedAt: at,
	}
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

func flag(rng *rand.Rand) string {
	if rng.IntN(2) == 1 {
		return "enabled"
	}
	return "disabled"
}

// Store is what SeedIfEmpty needs from the snapshot store.
type Store interface {
	model.StatsQuerier
	model.SnapshotWriter
}

// SeedIfEmpty writes the default demo data set when store holds no
// snapshots. It returns how many snapshots were written.
func SeedIfEmpty(ctx context.Context, store Store, now time.Time, rng *rand.Rand) (int, error) {
	n, err := store.TotalSnapshotCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	if n > 0 {
		logging.Debug().Str("component", "demo").Int64("existing", n).Msg("store not empty, skipping demo data")
		return 0, nil
	}

	snaps := Generate(now, DefaultServers, DefaultDays, rng)
	ptrs := make([]*model.Snapshot, len(snaps))
	for i := range snaps {
		ptrs[i] = &snaps[i]
	}
	if err := store.InsertSnapshotBatch(ptrs); err != nil {
		return 0, fmt.Errorf("insert demo data: %w", err)
	}
	logging.Info().Str("component", "demo").Int("snapshots", len(snaps)).Msg("seeded demo data")
	return len(snaps), nil
}
