// Package strings cleans list-valued configuration.
package strings

import "strings"

// DedupeAndTrim trims every value and drops blanks and repeats, keeping
// first-seen order. "a, b,,a" split on commas becomes [a b].
func DedupeAndTrim(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
