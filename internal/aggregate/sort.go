package aggregate

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
)

// Each sort returns a sorted copy and leaves its input untouched. Sorts are
// stable, so equal elements keep the key order produced by aggregation.

// ByKey sorts by key ascending.
func ByKey(g GroupedStat) GroupedStat {
	out := clone(g)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ByValueDesc sorts by value, largest first.
func ByValueDesc(g GroupedStat) GroupedStat {
	out := clone(g)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// ByVersionDesc sorts keys as versions, newest first.
func ByVersionDesc(g GroupedStat) GroupedStat {
	out := clone(g)
	sort.SliceStable(out, func(i, j int) bool { return CompareVersions(out[i].Key, out[j].Key) > 0 })
	return out
}

// ByNumericKeyDesc sorts integer keys, largest first. A key that does not
// parse as an integer yields an *InputError.
func ByNumericKeyDesc(g GroupedStat) (GroupedStat, error) {
	nums := make(map[string]int64, len(g))
	for _, e := range g {
		n, err := strconv.ParseInt(strings.TrimSpace(e.Key), 10, 64)
		if err != nil {
			return nil, &InputError{Key: e.Key, Err: err}
		}
		nums[e.Key] = n
	}
	out := clone(g)
	sort.SliceStable(out, func(i, j int) bool { return nums[out[i].Key] > nums[out[j].Key] })
	return out, nil
}

// SortPairsBySumDesc orders pairs by First+Second, largest first.
func SortPairsBySumDesc(p PairStat) PairStat {
	out := make(PairStat, len(p))
	copy(out, p)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].First+out[i].Second > out[j].First+out[j].Second
	})
	return out
}

// CompareVersions compares two version strings and returns -1, 0 or +1.
// Semantic versions ("1.20.4", "17", "1.20.4-R0.1") compare by semver rules;
// anything else falls back to segment-wise comparison where numeric
// segments compare as numbers.
func CompareVersions(a, b string) int {
	va, vb := "v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v")
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb)
	}
	return compareSegments(splitSegments(a), splitSegments(b))
}

func splitSegments(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func compareSegments(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		// numbers sort after qualifiers such as "pre" or "rc"
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func clone(g GroupedStat) GroupedStat {
	out := make(GroupedStat, len(g))
	copy(out, g)
	return out
}
