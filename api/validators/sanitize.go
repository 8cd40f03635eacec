package validators

import "strings"

// SanitizeString trims input and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}

// NormalizeSearchQuery collapses runs of whitespace so "ca   phe" and
// "ca phe" hit the same autocomplete results.
func NormalizeSearchQuery(input string, maxLen int) string {
	return SanitizeString(strings.Join(strings.Fields(input), " "), maxLen)
}
