package parse

import (
	"strconv"
	"strings"
)

// Cleanups for the field notation quirks the source site uses. Each strips
// the decoration and coerces the remainder; all degrade to ok=false.

// Height parses "1,87 m" (comma decimal, unit suffix) into meters.
func Height(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	t = strings.TrimSuffix(t, "m")
	t = strings.TrimSpace(t)
	t = strings.ReplaceAll(t, ",", ".")
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ShirtNumber parses "#10" into 10.
func ShirtNumber(s string) (int64, bool) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "#")
	return Integer(t)
}

// Minutes parses played-minutes notation: a trailing minute mark and
// thousands separators ("2.303'" -> 2303).
func Minutes(s string) (int64, bool) {
	t := strings.TrimSpace(s)
	t = strings.TrimSuffix(t, "'")
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, ",", "")
	return Integer(t)
}

// Days parses durations like "5 days" or "1 day" into a day count.
func Days(s string) (int64, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, "days")
	t = strings.TrimSuffix(t, "day")
	return Integer(strings.TrimSpace(t))
}

// Goals splits scoreline notation "2:1" into (scored, conceded).
func Goals(s string) (scored, conceded int64, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	scored, ok = Integer(parts[0])
	if !ok {
		return 0, 0, false
	}
	conceded, ok = Integer(parts[1])
	if !ok {
		return 0, 0, false
	}
	return scored, conceded, true
}

// Integer parses a plain integer, tolerating surrounding whitespace.
func Integer(s string) (int64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float parses a plain float, tolerating surrounding whitespace.
func Float(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Boolean parses permissive boolean encodings.
func Boolean(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// SplitMulti splits a separator-joined multi-value string into its parts,
// trimming whitespace and dropping empties. A nil result means no values.
func SplitMulti(s, sep string) []string {
	if sep == "" {
		sep = ","
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
