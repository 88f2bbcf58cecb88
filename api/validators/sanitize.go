package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims whitespace and drops control characters, which keyboard
// wedge scanners append (CR, LF, the GS field separator), then caps the result
// at maxLen runes. A maxLen of zero means no cap.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)

	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			return string(runes[:maxLen])
		}
	}
	return cleaned
}
