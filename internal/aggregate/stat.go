// Package aggregate turns snapshot sequences into grouped statistics:
// per-category counts and sums, per-category metric pairs, and hourly buckets.
//
// Every function here is pure and safe for concurrent use. Results are
// ordered by key so that re-aggregating the same multiset of snapshots,
// in any order, yields an identical value. Other orders come only from the
// explicit sort helpers in sort.go.
package aggregate

import (
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// KeyFunc extracts a category key from a snapshot.
type KeyFunc func(*model.Snapshot) string

// ValueFunc extracts a numeric value from a snapshot.
type ValueFunc func(*model.Snapshot) int64

// Entry is one category and its accumulated value.
type Entry struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// GroupedStat is an ordered category → value mapping.
type GroupedStat []Entry

// Total returns the sum of all values.
func (g GroupedStat) Total() int64 {
	var total int64
	for _, e := range g {
		total += e.Value
	}
	return total
}

// Max returns the largest value, or 0 for an empty stat.
func (g GroupedStat) Max() int64 {
	var max int64
	for i, e := range g {
		if i == 0 || e.Value > max {
			max = e.Value
		}
	}
	return max
}

// Get returns the value for key.
func (g GroupedStat) Get(key string) (int64, bool) {
	for _, e := range g {
		if e.Key == key {
			return e.Value, true
		}
	}
	return 0, false
}

// Keys returns the keys in their current order.
func (g GroupedStat) Keys() []string {
	keys := make([]string, len(g))
	for i, e := range g {
		keys[i] = e.Key
	}
	return keys
}

// PairEntry is one category with two independent accumulations.
type PairEntry struct {
	Key    string `json:"key"`
	First  int64  `json:"first"`
	Second int64  `json:"second"`
}

// PairStat is an ordered category → (first, second) mapping.
type PairStat []PairEntry

// HourStat maps a UTC hour bucket to its accumulated value.
type HourStat map[time.Time]int64

// Common key and value extractors.
var (
	PlayerCount ValueFunc = func(s *model.Snapshot) int64 { return int64(s.PlayerCount) }
	One         ValueFunc = func(*model.Snapshot) int64 { return 1 }
)
