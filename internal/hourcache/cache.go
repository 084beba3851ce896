// Package hourcache memoises rendered output per name and UTC hour.
//
// An entry computed during an hour is served unchanged for the rest of that
// hour; the next hour gets a new key. Concurrent misses for the same key
// share one computation, and errors are never stored. The shared computation
// is detached from any single caller: a caller that goes away stops waiting
// but the others still get the result.
package hourcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// DefaultRenderTimeout bounds one shared computation.
const DefaultRenderTimeout = 30 * time.Second

// Cache is safe for concurrent use.
type Cache struct {
	// RenderTimeout bounds each shared computation.
	RenderTimeout time.Duration

	lru   *expirable.LRU[string, []byte]
	group singleflight.Group
	now   func() time.Time
}

// New returns a cache holding at most size entries for up to an hour each.
// A size below 1 uses the default.
func New(size int) *Cache {
	if size < 1 {
		size = model.DefaultCacheSize
	}
	return &Cache{
		RenderTimeout: DefaultRenderTimeout,
		lru:           expirable.NewLRU[string, []byte](size, nil, time.Hour),
		now:           time.Now,
	}
}

// Key returns the cache key for name in the hour containing t.
func Key(name string, t time.Time) string {
	return name + ":" + t.UTC().Truncate(time.Hour).Format(time.RFC3339)
}

// Get returns the cached value for name in the current hour, computing it
// with fn on a miss.
func (c *Cache) Get(ctx context.Context, name string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	key := Key(name, c.now())
	if v, ok := c.lru.Get(key); ok {
		metrics.RenderCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	metrics.RenderCache.WithLabelValues("miss").Inc()

	timeout := c.RenderTimeout
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		out, err := fn(shared)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, out)
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}
