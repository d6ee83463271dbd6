package parse

import (
	"strings"
	"time"
)

// DateLayouts are the source date formats accepted by Date, tried in order.
// The first match wins, which settles the DD/MM vs MM/DD ambiguity in favor
// of the layout listed first. Callers may pass their own list.
var DateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

// TimestampLayouts are the source timestamp formats accepted by Timestamp.
var TimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000Z07:00",
}

// Date normalizes a source date string to ISO 8601 (YYYY-MM-DD).
// A nil layouts slice means DateLayouts.
func Date(s string, layouts []string) (string, bool) {
	if layouts == nil {
		layouts = DateLayouts
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, lay := range layouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// Timestamp normalizes a source timestamp string to RFC 3339 in UTC.
func Timestamp(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, lay := range TimestampLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}
