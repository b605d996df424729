// Package strings holds small string helpers shared by configuration code.
package strings

import "strings"

// SplitList splits a comma-separated value, trimming whitespace and dropping
// empty and repeated entries. Order of first appearance is kept.
func SplitList(s string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
