package aggregate

import (
	"sort"

	"github.com/tinytelemetry/pulse/internal/model"
)

// CountBy counts snapshots per category. An empty key is its own category.
func CountBy(snaps []model.Snapshot, key KeyFunc) GroupedStat {
	return SumBy(snaps, key, One)
}

// SumBy sums value over snapshots per category.
func SumBy(snaps []model.Snapshot, key KeyFunc, value ValueFunc) GroupedStat {
	if len(snaps) == 0 {
		return GroupedStat{}
	}
	sums := make(map[string]int64)
	for i := range snaps {
		s := &snaps[i]
		sums[key(s)] += value(s)
	}
	return fromMap(sums)
}

// PairBy accumulates two independent sums per category.
func PairBy(snaps []model.Snapshot, key KeyFunc, first, second ValueFunc) PairStat {
	if len(snaps) == 0 {
		return PairStat{}
	}
	pairs := make(map[string]*PairEntry)
	for i := range snaps {
		s := &snaps[i]
		k := key(s)
		p, ok := pairs[k]
		if !ok {
			p = &PairEntry{Key: k}
			pairs[k] = p
		}
		p.First += first(s)
		p.Second += second(s)
	}

	out := make(PairStat, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CountByHour counts snapshots per UTC hour of their creation time.
func CountByHour(snaps []model.Snapshot) HourStat {
	return SumByHour(snaps, One)
}

// SumByHour sums value per UTC hour of creation time.
func SumByHour(snaps []model.Snapshot, value ValueFunc) HourStat {
	out := make(HourStat)
	for i := range snaps {
		s := &snaps[i]
		out[TruncateHour(s.CreatedAt)] += value(s)
	}
	return out
}

// ModuleEnabledCounts counts, per module name, the snapshots reporting that
// module as enabled. Modules only ever reported as disabled appear with 0.
func ModuleEnabledCounts(snaps []model.Snapshot) GroupedStat {
	if len(snaps) == 0 {
		return GroupedStat{}
	}
	counts := make(map[string]int64)
	for i := range snaps {
		for name, flag := range snaps[i].Modules {
			if model.ModuleEnabled(flag) {
				counts[name]++
			} else if _, seen := counts[name]; !seen {
				counts[name] = 0
			}
		}
	}
	return fromMap(counts)
}

func fromMap(m map[string]int64) GroupedStat {
	out := make(GroupedStat, 0, len(m))
	for k, v := range m {
		out = append(out, Entry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
