package utils

import (
	"strings"
	"unicode"
)

// SanitizeDisplayName drops control characters and collapses runs of whitespace, so names
// coming from the backend print on one line.
func SanitizeDisplayName(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most maxLen bytes plus an ellipsis marker.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	return s[:maxLen] + "..."
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MaskSecret keeps visible characters at each end of s. Short secrets are fully masked.
func MaskSecret(s string, visible int) string {
	if visible <= 0 || len(s) <= 2*visible {
		return "********"
	}
	return s[:visible] + "…" + s[len(s)-visible:]
}
