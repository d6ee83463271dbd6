package watermark

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var columns = []string{
	"date", "team_id", "data_source", "data_exists", "last_checked",
	"file_size_bytes", "record_count", "data_quality_score", "needs_refresh",
}

// Encode writes the table as CSV with a fixed header. Unmeasured counts and
// scores become empty cells.
func Encode(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	for _, e := range t.Entries {
		row := []string{
			e.Date,
			e.TeamID,
			e.DataSource,
			strconv.FormatBool(e.DataExists),
			e.LastChecked,
			strconv.FormatInt(e.FileSizeBytes, 10),
			optionalInt(e.RecordCount),
			optionalFloat(e.DataQualityScore),
			strconv.FormatBool(e.NeedsRefresh),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("encode watermark: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a table written by Encode. The header must match exactly;
// the control table is machine-written, so a mismatch means the wrong file.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("decode watermark: read header: %w", err)
	}
	if len(header) != len(columns) {
		return nil, fmt.Errorf("decode watermark: header has %d columns, want %d", len(header), len(columns))
	}
	for i, name := range columns {
		if header[i] != name {
			return nil, fmt.Errorf("decode watermark: header column %d is %q, want %q", i, header[i], name)
		}
	}

	t := &Table{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: %w", line, err)
		}

		e := Entry{
			Date:        row[0],
			TeamID:      row[1],
			DataSource:  row[2],
			LastChecked: row[4],
		}
		if e.DataExists, err = strconv.ParseBool(row[3]); err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: data_exists: %w", line, err)
		}
		if e.FileSizeBytes, err = strconv.ParseInt(row[5], 10, 64); err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: file_size_bytes: %w", line, err)
		}
		if e.RecordCount, err = parseOptionalInt(row[6]); err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: record_count: %w", line, err)
		}
		if e.DataQualityScore, err = parseOptionalFloat(row[7]); err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: data_quality_score: %w", line, err)
		}
		if e.NeedsRefresh, err = strconv.ParseBool(row[8]); err != nil {
			return nil, fmt.Errorf("decode watermark: line %d: needs_refresh: %w", line, err)
		}

		if t.Date == "" {
			t.Date = e.Date
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func optionalInt(v int64) string {
	if v < 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func optionalFloat(v float64) string {
	if v < 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseOptionalInt(s string) (int64, error) {
	if s == "" {
		return -1, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseOptionalFloat(s string) (float64, error) {
	if s == "" {
		return -1, nil
	}
	return strconv.ParseFloat(s, 64)
}
