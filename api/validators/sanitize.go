package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters, collapses runs of
// whitespace to one space and cuts the result to maxLen bytes on a rune
// boundary. maxLen <= 0 means no limit.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r), r == utf8.RuneError:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}

	out := b.String()
	if maxLen <= 0 || len(out) <= maxLen {
		return out
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(out[cut]) {
		cut--
	}
	return strings.TrimSpace(out[:cut])
}

// NormalizeCode formats a catalog code such as " amx 500 " as "AMX-500".
func NormalizeCode(input string, maxLen int) string {
	clean := SanitizeString(input, maxLen)
	return strings.ToUpper(strings.ReplaceAll(clean, " ", "-"))
}
