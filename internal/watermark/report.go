package watermark

import "math"

// SourceStats aggregates completeness for one grouping key.
type SourceStats struct {
	Expected int
	Complete int
	Records  int64
	Bytes    int64
}

// Report is a completeness summary of one control table.
type Report struct {
	Date         string
	Completeness float64 // percent, two decimals
	Expected     int
	Complete     int
	Missing      int
	BySource     map[string]SourceStats
	ByTeam       map[string]SourceStats
}

// BuildReport summarizes a table. Per-team stats exclude the ALL entries so
// league-wide sources do not show up as a phantom team.
func BuildReport(t *Table) Report {
	r := Report{
		Date:     t.Date,
		BySource: make(map[string]SourceStats),
		ByTeam:   make(map[string]SourceStats),
	}

	for _, e := range t.Entries {
		r.Expected++
		if e.DataExists {
			r.Complete++
		}

		s := r.BySource[e.DataSource]
		s.Expected++
		if e.DataExists {
			s.Complete++
		}
		if e.RecordCount > 0 {
			s.Records += e.RecordCount
		}
		s.Bytes += e.FileSizeBytes
		r.BySource[e.DataSource] = s

		if e.TeamID == TeamAll {
			continue
		}
		tm := r.ByTeam[e.TeamID]
		tm.Expected++
		if e.DataExists {
			tm.Complete++
		}
		if e.RecordCount > 0 {
			tm.Records += e.RecordCount
		}
		tm.Bytes += e.FileSizeBytes
		r.ByTeam[e.TeamID] = tm
	}

	r.Missing = r.Expected - r.Complete
	if r.Expected > 0 {
		r.Completeness = math.Round(float64(r.Complete)/float64(r.Expected)*10000) / 100
	}
	return r
}
