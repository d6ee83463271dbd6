package watermark

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"footstats/pkg/records"
)

// hashSep keeps adjacent cell values from running together; a unit
// separator never appears in rendered field text.
const hashSep = "\x1f"

// Score rates one transformed batch in [0, 1] from two defects: the share
// of null cells and the share of duplicate rows. Both weigh equally, so a
// batch that is half nulls or half duplicates scores 0.75 and a clean batch
// scores 1. An empty batch scores 0; a source that fetched nothing has no
// quality to speak of.
func Score(rows []records.Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	score := 1 - 0.5*nullRatio(rows) - 0.5*duplicateRatio(rows)
	if score < 0 {
		return 0
	}
	return score
}

func nullRatio(rows []records.Row) float64 {
	cells, nulls := 0, 0
	for _, row := range rows {
		for _, f := range row {
			cells++
			if f.IsNull() {
				nulls++
			}
		}
	}
	if cells == 0 {
		return 0
	}
	return float64(nulls) / float64(cells)
}

func duplicateRatio(rows []records.Row) float64 {
	seen := make(map[string]bool, len(rows))
	dups := 0
	for _, row := range rows {
		h := rowHash(row)
		if seen[h] {
			dups++
			continue
		}
		seen[h] = true
	}
	return float64(dups) / float64(len(rows))
}

// rowHash derives a canonical row identity. Cells are kind-prefixed so the
// string "7" and the integer 7 hash apart, and nulls hash apart from any
// rendered value.
func rowHash(row records.Row) string {
	var b strings.Builder
	for i, f := range row {
		if i > 0 {
			b.WriteString(hashSep)
		}
		if f.IsNull() {
			b.WriteString("null")
			continue
		}
		b.WriteString(string(f.Kind))
		b.WriteByte(':')
		b.WriteString(f.Render(""))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
