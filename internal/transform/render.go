package transform

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// RenderOptions control how a batch is written out. The zero value
// writes pipe-delimited lines with an empty-field null sentinel.
type RenderOptions struct {
	Delimiter    string
	NullSentinel string
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Delimiter == "" {
		o.Delimiter = "|"
	}
	return o
}

// RenderBatch writes the header line followed by one line per row.
// Cell text never contains the delimiter or a line break: both are
// replaced with a single space before writing, so the file stays
// parseable without a quoting layer.
func RenderBatch(w io.Writer, b *Batch, opts RenderOptions) error {
	opts = opts.withDefaults()
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(b.Columns, opts.Delimiter)); err != nil {
		return fmt.Errorf("render %s: %w", b.Category, err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("render %s: %w", b.Category, err)
	}

	for _, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return fmt.Errorf("render %s: row has %d cells, header has %d", b.Category, len(row), len(b.Columns))
		}
		for i, f := range row {
			if i > 0 {
				if _, err := bw.WriteString(opts.Delimiter); err != nil {
					return fmt.Errorf("render %s: %w", b.Category, err)
				}
			}
			if _, err := bw.WriteString(sanitizeCell(f.Render(opts.NullSentinel), opts.Delimiter)); err != nil {
				return fmt.Errorf("render %s: %w", b.Category, err)
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("render %s: %w", b.Category, err)
		}
	}
	return bw.Flush()
}

func sanitizeCell(s, delim string) string {
	if strings.Contains(s, delim) {
		s = strings.ReplaceAll(s, delim, " ")
	}
	if strings.ContainsAny(s, "\r\n") {
		s = strings.ReplaceAll(s, "\r\n", " ")
		s = strings.ReplaceAll(s, "\n", " ")
		s = strings.ReplaceAll(s, "\r", " ")
	}
	return s
}

// FileName is the per-category output key for one run: the category
// name plus the run timestamp, so reruns never clobber earlier files.
func FileName(category string, ts time.Time) string {
	return fmt.Sprintf("%s_%s.csv", category, ts.UTC().Format("20060102_150405"))
}

// RawFileName names the untransformed payload dump for a run.
func RawFileName(category string, ts time.Time) string {
	return fmt.Sprintf("%s_%s.json", category, ts.UTC().Format("20060102_150405"))
}
