package utils

import (
	"strings"
	"unicode/utf8"
)

// TruncateString shortens s to at most maxLen runes, ending the cut with
// "..." when there is space for it.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// MaskSensitive keeps the first visibleChars runes of s.
func MaskSensitive(s string, visibleChars int) string {
	runes := []rune(s)
	if len(runes) <= visibleChars {
		return strings.Repeat("*", len(runes))
	}
	if visibleChars < 0 {
		visibleChars = 0
	}
	return string(runes[:visibleChars]) + strings.Repeat("*", len(runes)-visibleChars)
}
