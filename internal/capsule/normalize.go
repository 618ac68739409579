package capsule

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeContact strips every non-digit character from a phone number.
// "+1 (234) 567-8900" becomes "12345678900".
func NormalizeContact(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// SanitizeFilename makes s safe to embed in a single path component.
// Path separators and ".." become dashes and control characters are dropped.
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(strings.TrimSpace(s), "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
