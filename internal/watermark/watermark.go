// Package watermark tracks data completeness in a control table stored next
// to the data it describes.
//
// One CSV per date under the control prefix records, for every (team, data
// source) pair, whether the source's raw file exists, when it was last
// checked, and how the loaded batch scored. Smart runs consult the table to
// skip sources that are complete, fresh and clean enough, and a completeness
// report summarizes where the holes are.
package watermark

import (
	"fmt"
	"sort"
	"time"
)

// TeamAll marks entries for sources that are not team-specific, the league
// table being the one built-in case.
const TeamAll = "ALL"

// Entry is one row of the control table. RecordCount and DataQualityScore
// are negative until a run measures them.
type Entry struct {
	Date             string // 2006-01-02
	TeamID           string
	DataSource       string
	DataExists       bool
	LastChecked      string // RFC 3339
	FileSizeBytes    int64
	RecordCount      int64
	DataQualityScore float64
	NeedsRefresh     bool
}

// Table is one date's control table. Entry order is preserved across
// load/save cycles so diffs between runs stay readable.
type Table struct {
	Date    string
	Entries []Entry
}

// Key returns the control-table file name for a date.
func Key(date string) string {
	return fmt.Sprintf("watermark_table_%s.csv", date)
}

// Upsert replaces the entry keyed by (TeamID, DataSource) or appends a new
// one.
func (t *Table) Upsert(e Entry) {
	for i := range t.Entries {
		if t.Entries[i].TeamID == e.TeamID && t.Entries[i].DataSource == e.DataSource {
			t.Entries[i] = e
			return
		}
	}
	t.Entries = append(t.Entries, e)
}

// Lookup finds the entry for one (team, source) pair.
func (t *Table) Lookup(teamID, source string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.TeamID == teamID && e.DataSource == source {
			return e, true
		}
	}
	return Entry{}, false
}

// Missing groups the sources still flagged needs_refresh by team. Source
// lists are sorted so log output is stable.
func (t *Table) Missing() map[string][]string {
	missing := make(map[string][]string)
	for _, e := range t.Entries {
		if e.NeedsRefresh {
			missing[e.TeamID] = append(missing[e.TeamID], e.DataSource)
		}
	}
	for _, sources := range missing {
		sort.Strings(sources)
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

// Complete reports whether nothing in the table needs a refresh.
func (t *Table) Complete() bool {
	for _, e := range t.Entries {
		if e.NeedsRefresh {
			return false
		}
	}
	return true
}

// NeedsFetch decides whether a source must be fetched this run. Anything
// unknown fetches: a source with no entries, a stale or unparseable
// last-checked stamp, or a quality score below the floor all force a fetch.
// maxAge <= 0 disables the freshness check, minScore <= 0 the quality check.
func (t *Table) NeedsFetch(source string, now time.Time, maxAge time.Duration, minScore float64) bool {
	seen := false
	for _, e := range t.Entries {
		if e.DataSource != source {
			continue
		}
		seen = true
		if e.NeedsRefresh || !e.DataExists {
			return true
		}
		if maxAge > 0 {
			checked, err := time.Parse(time.RFC3339, e.LastChecked)
			if err != nil || now.Sub(checked) > maxAge {
				return true
			}
		}
		if minScore > 0 && e.DataQualityScore >= 0 && e.DataQualityScore < minScore {
			return true
		}
	}
	return !seen
}
