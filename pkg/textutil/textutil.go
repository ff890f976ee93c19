// Package textutil holds small string helpers shared across pipeline stages.
package textutil

import (
	"regexp"
	"strings"
)

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

const slugMaxLength = 120

// Slugify returns a filename-safe slug derived from value. Empty or fully
// unsafe input yields "contact" so callers always get a usable name.
func Slugify(value string) string {
	s := strings.ReplaceAll(strings.TrimSpace(value), " ", "_")
	s = slugUnsafe.ReplaceAllString(s, "")
	if len(s) > slugMaxLength {
		s = s[:slugMaxLength]
	}
	if s == "" {
		return "contact"
	}
	return s
}

// SplitList splits a semicolon-joined list into trimmed, non-empty entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FirstEntry returns the first trimmed, non-empty entry of a
// semicolon-joined list, or "" if the list has none.
func FirstEntry(value string) string {
	if parts := SplitList(value); len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// JoinList joins entries with semicolons, dropping empties.
func JoinList(values []string) string {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ";")
}
