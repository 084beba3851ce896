package pack

import "strings"

// WrapLabel splits label into at most two lines that fit a circle of the
// given radius. Lines break at the right-most space, hyphen or comma within
// the width limit, or hard at the limit; an overflowing second line ends
// in "...".
func WrapLabel(label string, radius float64) []string {
	limit := max(6, int(radius/5))
	runes := []rune(label)
	if len(runes) <= limit {
		return []string{label}
	}

	first, rest := breakAt(runes, limit)
	second := []rune(strings.TrimSpace(string(rest)))
	if len(second) > limit {
		second = append(second[:limit-3], []rune("...")...)
	}
	lines := []string{strings.TrimSpace(string(first))}
	if len(second) > 0 {
		lines = append(lines, string(second))
	}
	return lines
}

func breakAt(runes []rune, limit int) ([]rune, []rune) {
	for i := limit; i > 0; i-- {
		switch runes[i] {
		case ' ':
			return runes[:i], runes[i+1:]
		case '-', ',':
			// keep the separator on the first line
			if i+1 <= limit {
				return runes[:i+1], runes[i+1:]
			}
		}
	}
	return runes[:limit], runes[limit:]
}
