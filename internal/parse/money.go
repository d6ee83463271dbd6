// Package parse converts raw scraped string tokens into typed values.
//
// Every function follows the same contract: (value, ok). A failed parse
// returns ok=false and never an error; the caller decides whether the
// failure is worth a data-quality warning. Nothing in this package logs.
package parse

import (
	"strconv"
	"strings"
)

// Suffixes maps a compact-notation magnitude suffix to its multiplier.
type Suffixes map[string]float64

// DefaultSuffixes returns the suffix table used when none is configured.
// TransferMarkt publishes values as "€10.50m" and "€500k"; billions do not
// occur in club football and are deliberately absent.
func DefaultSuffixes() Suffixes {
	return Suffixes{"k": 1e3, "m": 1e6}
}

// Money parses compact currency notation into a plain float.
//
//	"€10.5m"  -> 10500000
//	"€500k"   -> 500000
//	"€750"    -> 750
//
// The leading currency symbol (any non-numeric prefix) and case are
// insignificant. A missing suffix yields the literal numeric value. An
// unknown suffix or a token with no parsable number yields ok=false.
func Money(s string, suffixes Suffixes) (float64, bool) {
	if suffixes == nil {
		suffixes = DefaultSuffixes()
	}

	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimLeftFunc(t, func(r rune) bool {
		return (r < '0' || r > '9') && r != '-' && r != '+' && r != '.'
	})
	if t == "" {
		return 0, false
	}

	// Split a trailing run of letters off as the magnitude suffix.
	cut := len(t)
	for cut > 0 {
		c := t[cut-1]
		if c < 'a' || c > 'z' {
			break
		}
		cut--
	}
	num := strings.TrimSpace(t[:cut])
	suffix := t[cut:]

	mult := 1.0
	if suffix != "" {
		m, ok := suffixes[suffix]
		if !ok {
			return 0, false
		}
		mult = m
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}
