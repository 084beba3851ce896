// Package pack places weighted circles on a canvas without overlap: the
// largest at the centre, the rest along an outward spiral, with a scored
// random fallback when the spiral runs out of attempts.
package pack

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

// Placement defaults.
const (
	BaseMinRadius    = 60
	BaseMaxRadius    = 100
	DefaultPadding   = 20
	DefaultAttempts  = 100
	DefaultFallbacks = 50
	RadiusStep       = 1.2
	outOfBoundsCost  = 1000
)

// AngleStep is the spiral's angular increment per attempt.
const AngleStep = math.Pi / 6

// Item is one weighted value to place.
type Item struct {
	Key   string
	Value int64
}

// Circle is a placed item. Index is the item's position in the input slice.
type Circle struct {
	Item
	Index    int
	Ratio    float64
	X, Y     float64
	R        float64
	Fallback bool
}

// Packer holds the placement parameters. Use New for the standard setup.
type Packer struct {
	Width, Height        float64
	MinRadius, MaxRadius float64
	Padding              float64
	AngleStep            float64
	RadiusStep           float64
	Attempts             int
	FallbackTries        int
	// Rand drives fallback placement. Nil uses a time-seeded source.
	Rand *rand.Rand
}

// New returns a Packer for a width×height canvas whose radii are scaled for
// count circles.
func New(width, height float64, count int, rng *rand.Rand) *Packer {
	return &Packer{
		Width:         width,
		Height:        height,
		MinRadius:     ScaleRadius(BaseMinRadius, count),
		MaxRadius:     ScaleRadius(BaseMaxRadius, count),
		Padding:       DefaultPadding,
		AngleStep:     AngleStep,
		RadiusStep:    RadiusStep,
		Attempts:      DefaultAttempts,
		FallbackTries: DefaultFallbacks,
		Rand:          rng,
	}
}

// ScaleRadius shrinks radii for crowded charts and grows them for sparse ones.
func ScaleRadius(base float64, count int) float64 {
	switch {
	case count > 15:
		return base * 0.7
	case count < 5:
		return base * 1.3
	}
	return base
}

// Pack sizes items by their share of the total and places them, largest
// first. The returned circles are in placement order.
func (p *Packer) Pack(items []Item) []Circle {
	if len(items) == 0 {
		return nil
	}

	var sum int64
	for _, it := range items {
		sum += it.Value
	}

	circles := make([]Circle, len(items))
	for i, it := range items {
		ratio := 0.0
		if sum > 0 {
			ratio = float64(it.Value) / float64(sum)
		}
		r := p.MinRadius + (p.MaxRadius-p.MinRadius)*ratio
		circles[i] = Circle{
			Item:  it,
			Index: i,
			Ratio: ratio,
			R:     math.Max(p.MinRadius, math.Min(p.MaxRadius, r)),
		}
	}
	sort.SliceStable(circles, func(i, j int) bool { return circles[i].Value > circles[j].Value })

	cx, cy := p.Width/2, p.Height/2
	circles[0].X, circles[0].Y = cx, cy

	rng := p.Rand
	for i := 1; i < len(circles); i++ {
		if x, y, ok := p.spiral(circles[:i], circles[i].R, cx, cy, circles[0].R); ok {
			circles[i].X, circles[i].Y = x, y
			continue
		}
		if rng == nil {
			rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
		}
		circles[i].X, circles[i].Y = p.fallback(circles[:i], circles[i].R, cx, cy, rng)
		circles[i].Fallback = true
	}
	return circles
}

func (p *Packer) spiral(placed []Circle, r, cx, cy, firstR float64) (float64, float64, bool) {
	angle := 0.0
	dist := firstR + p.Padding
	for attempt := 0; attempt < p.Attempts; attempt++ {
		x := cx + dist*math.Cos(angle)
		y := cy + dist*math.Sin(angle)
		if p.inBounds(x, y, r) && !p.overlaps(placed, x, y, r) {
			return x, y, true
		}
		angle += p.AngleStep
		dist += p.RadiusStep
	}
	return 0, 0, false
}

func (p *Packer) fallback(placed []Circle, r, cx, cy float64, rng *rand.Rand) (float64, float64) {
	bestX, bestY := cx, cy
	best := math.MaxFloat64
	for i := 0; i < p.FallbackTries; i++ {
		x := p.Padding + rng.Float64()*(p.Width-2*p.Padding)
		y := p.Padding + rng.Float64()*(p.Height-2*p.Padding)
		if score := p.score(placed, x, y, r); score < best {
			best, bestX, bestY = score, x, y
		}
	}
	return bestX, bestY
}

func (p *Packer) score(placed []Circle, x, y, r float64) float64 {
	var score float64
	for _, o := range placed {
		required := r + o.R + p.Padding
		score += math.Max(0, required-math.Hypot(x-o.X, y-o.Y))
	}
	if !p.inBounds(x, y, r) {
		score += outOfBoundsCost
	}
	return score
}

func (p *Packer) overlaps(placed []Circle, x, y, r float64) bool {
	for _, o := range placed {
		if math.Hypot(x-o.X, y-o.Y) < r+o.R+p.Padding {
			return true
		}
	}
	return false
}

func (p *Packer) inBounds(x, y, r float64) bool {
	return x-r >= 0 && x+r <= p.Width && y-r >= 0 && y+r <= p.Height
}
