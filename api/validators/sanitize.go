package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString collapses whitespace runs to single spaces and cuts the
// result to maxLen runes. maxLen <= 0 keeps the full string.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	return strings.TrimSpace(string([]rune(cleaned)[:maxLen]))
}
