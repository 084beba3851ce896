package report

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/tinytelemetry/pulse/internal/aggregate"
	"github.com/tinytelemetry/pulse/internal/chart"
	"github.com/tinytelemetry/pulse/internal/draw"
	"github.com/tinytelemetry/pulse/internal/logging"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

var (
	// ErrUnknownReport is returned for a name not in the catalog.
	ErrUnknownReport = errors.New("unknown report")
	// ErrNoDistribution is returned by Distribution for charts not drawn
	// from a single grouped stat.
	ErrNoDistribution = errors.New("report has no single distribution")
)

// Service renders catalog charts from the snapshot store.
type Service struct {
	Store   model.SnapshotQuerier
	Encoder draw.Encoder
	Palette draw.Palette
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Rand returns the source for circle fallback placement; nil is
	// time-seeded per render.
	Rand func() *rand.Rand
}

// NewService returns a Service using the default palette.
func NewService(store model.SnapshotQuerier, enc draw.Encoder) *Service {
	return &Service{Store: store, Encoder: enc, Palette: draw.DefaultPalette(), Clock: time.Now}
}

// Names lists the catalog in route order.
func (s *Service) Names() []string {
	names := make([]string, len(catalog))
	for i, r := range catalog {
		names[i] = r.Name
	}
	return names
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Report, error) {
	r, ok := byName[name]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownReport, name)
	}
	return r, nil
}

// Config returns the canvas and palette used for r.
func (s *Service) Config(r Report) chart.Config {
	cfg := chart.DefaultConfig()
	if r.Large {
		cfg = chart.StatusGridConfig()
	}
	cfg.Palette = s.Palette
	return cfg
}

// Commands queries and aggregates the named chart and returns its drawing
// commands with the config they were laid out for.
func (s *Service) Commands(ctx context.Context, name string) ([]draw.Command, chart.Config, error) {
	r, err := Lookup(name)
	if err != nil {
		return nil, chart.Config{}, err
	}
	now := s.now()
	snaps, err := s.Store.SnapshotsSince(ctx, r.Since(now))
	if err != nil {
		return nil, chart.Config{}, fmt.Errorf("query %s: %w", name, err)
	}

	var rng *rand.Rand
	if s.Rand != nil {
		rng = s.Rand()
	}
	renderer, err := r.chart(input{snaps: snaps, now: now, rng: rng})
	if err != nil {
		return nil, chart.Config{}, fmt.Errorf("aggregate %s: %w", name, err)
	}
	cfg := s.Config(r)
	return renderer.Render(cfg), cfg, nil
}

// Render returns the encoded chart.
func (s *Service) Render(ctx context.Context, name string) (out []byte, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrUnknownReport) {
			metrics.ObserveRender(name, start, err)
		}
	}()

	cmds, cfg, err := s.Commands(ctx, name)
	if err != nil {
		return nil, err
	}
	out, err = s.Encoder.Encode(cmds, cfg.Canvas.Width, cfg.Canvas.Height)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("component", "report").
		Str("report", name).
		Int("commands", len(cmds)).
		Int("bytes", len(out)).
		Dur("took", time.Since(start)).
		Msg("chart rendered")
	return out, nil
}

// Distribution returns the grouped stat behind a bar, circle or status chart.
func (s *Service) Distribution(ctx context.Context, name string) (aggregate.GroupedStat, error) {
	r, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if !r.HasDistribution() {
		return nil, fmt.Errorf("%w: %q", ErrNoDistribution, name)
	}
	snaps, err := s.Store.SnapshotsSince(ctx, r.Since(s.now()))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return r.stat(snaps)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}
