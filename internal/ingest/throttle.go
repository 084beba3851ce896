package ingest

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tinytelemetry/pulse/internal/model"
)

// Throttle admits at most one report per client address per window.
type Throttle struct {
	window time.Duration

	mu   sync.Mutex
	last *expirable.LRU[string, time.Time]
}

// NewThrottle returns a Throttle remembering up to size addresses. Zero
// values take the defaults.
func NewThrottle(window time.Duration, size int) *Throttle {
	if window <= 0 {
		window = model.DefaultThrottleWindow
	}
	if size <= 0 {
		size = model.DefaultThrottleSize
	}
	return &Throttle{
		window: window,
		last:   expirable.NewLRU[string, time.Time](size, nil, max(window, time.Hour)),
	}
}

// Allowed reports whether ip may report at now without recording anything.
func (t *Throttle) Allowed(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowedLocked(ip, now)
}

// Admit is the check-and-record form of Allowed: when ip may report at now,
// now becomes its last accepted report.
func (t *Throttle) Admit(ip string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.allowedLocked(ip, now) {
		return false
	}
	t.last.Add(ip, now)
	return true
}

func (t *Throttle) allowedLocked(ip string, now time.Time) bool {
	prev, ok := t.last.Peek(ip)
	return !ok || now.Sub(prev) >= t.window
}
