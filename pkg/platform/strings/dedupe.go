// Package strings holds small helpers for operator-supplied string lists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops empties and exact duplicates,
// keeping the first occurrence.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeFold is DedupeAndTrim with case-insensitive comparison. The first
// spelling of each value is kept.
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		k := key(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList splits a comma separated list and cleans it with DedupeAndTrim.
func SplitList(s string) []string {
	return DedupeAndTrim(strings.Split(s, ","))
}
