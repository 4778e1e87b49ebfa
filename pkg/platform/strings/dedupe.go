// Package strings holds small string-slice helpers shared across packages.
package strings

import "strings"

// DedupeAndTrim normalizes a list of user-supplied values: each entry is
// whitespace-trimmed, empties are dropped, and only the first occurrence of
// a value survives. Token scopes and comma-split env lists both go through
// this before use.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	out := values[:0:0]
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
