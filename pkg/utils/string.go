package utils

import "strings"

// Truncate shortens s to maxLen runes plus an ellipsis. Runs of whitespace,
// including newlines, are folded into single spaces first.
func Truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
