package transform

import (
	"strings"
	"unicode/utf8"
)

// maxColumnLen caps normalized column names at the common identifier
// limit shared by the catalog and the SQL sinks.
const maxColumnLen = 63

// NormalizeColumn rewrites a declared column name into a safe lowercase
// identifier: letters and digits pass through, separator punctuation
// becomes a single underscore, anything else is dropped. The result is
// truncated to maxColumnLen bytes without splitting a rune.
func NormalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == ' ', r == '-', r == '.', r == '/', r == ':', r == '(', r == ')', r == '_':
			if !prevUnderscore {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	return truncateColumn(strings.Trim(b.String(), "_"))
}

func truncateColumn(s string) string {
	if len(s) <= maxColumnLen {
		return s
	}
	cut := maxColumnLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.Trim(s[:cut], "_")
}
