// Package transform turns raw API records into flat typed rows.
//
// The mapping from record to row is fully declarative: a Spec names the
// output columns, the path expression feeding each one, the value
// conversion to apply, and the policy for list values. Applying the
// same spec to the same records always yields the same batch; nothing
// here mutates its inputs or keeps state between calls.
//
// Failure semantics are deliberately soft. A value that cannot be
// converted becomes a null cell and a counted warning; a missing path
// becomes a null cell silently. Only a broken spec aborts the batch.
package transform

import (
	"encoding/json"
	"fmt"
	"strconv"

	"footstats/internal/parse"
	"footstats/pkg/records"
)

// Logger is the minimal logging seam, satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// Options configure a Transformer. Zero values fall back to the default
// currency suffixes, the default date layouts, and "," as the in-cell
// list separator.
type Options struct {
	Logger      Logger
	Suffixes    parse.Suffixes
	DateLayouts []string
	Separator   string
}

// Transformer applies specs to record batches. It is stateless and safe
// for concurrent use by the per-category workers.
type Transformer struct {
	opts Options
}

func New(opts Options) *Transformer {
	if opts.Suffixes == nil {
		opts.Suffixes = parse.DefaultSuffixes()
	}
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = parse.DateLayouts
	}
	if opts.Separator == "" {
		opts.Separator = ","
	}
	return &Transformer{opts: opts}
}

// Batch is the output of one Apply call: a fixed header and rows whose
// width always equals len(Columns). Rows keep the source record order;
// expanded rows keep the source list order.
type Batch struct {
	Category string
	Columns  []string
	Rows     []records.Row
	Warnings int
}

// emitCol is one planned output cell source. idx >= 0 marks a numbered
// column produced by a multi=columns spread.
type emitCol struct {
	name string
	col  Column
	path Path
	idx  int
}

// Apply maps records through the spec. The header is computed up front,
// including the numbered columns for multi=columns fields sized to the
// widest list in this batch, and never changes while rows are emitted.
func (t *Transformer) Apply(spec Spec, recs []records.Raw) (*Batch, error) {
	if issues := spec.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("transform: spec for category=%s: %s", spec.Category, issues[0])
	}

	paths := make([]Path, len(spec.Columns))
	for i, c := range spec.Columns {
		paths[i] = MustPath(c.Path)
	}

	// First pass: how wide does each multi=columns field need to be.
	widths := make([]int, len(spec.Columns))
	for _, rec := range recs {
		for i, c := range spec.Columns {
			if c.Multi != MultiColumns {
				continue
			}
			v, ok := paths[i].Resolve(rec)
			if !ok {
				continue
			}
			if n := listLen(v, t.opts.Separator); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var emits []emitCol
	for i, c := range spec.Columns {
		base := NormalizeColumn(c.Name)
		if c.Multi == MultiColumns {
			n := widths[i]
			if n < 1 {
				n = 1
			}
			for j := 0; j < n; j++ {
				emits = append(emits, emitCol{name: fmt.Sprintf("%s_%d", base, j+1), col: c, path: paths[i], idx: j})
			}
			continue
		}
		emits = append(emits, emitCol{name: base, col: c, path: paths[i], idx: -1})
	}

	var expandPath Path
	var expandEmits []emitCol
	if spec.Expand != nil {
		expandPath = MustPath(spec.Expand.Path)
		for _, c := range spec.Expand.Columns {
			expandEmits = append(expandEmits, emitCol{name: NormalizeColumn(c.Name), col: c, path: MustPath(c.Path), idx: -1})
		}
	}

	header := make([]string, 0, len(emits)+len(expandEmits))
	seen := make(map[string]bool, cap(header))
	for _, e := range emits {
		if seen[e.name] {
			return nil, fmt.Errorf("transform: category=%s duplicate output column %q", spec.Category, e.name)
		}
		seen[e.name] = true
		header = append(header, e.name)
	}
	for _, e := range expandEmits {
		if seen[e.name] {
			return nil, fmt.Errorf("transform: category=%s duplicate output column %q", spec.Category, e.name)
		}
		seen[e.name] = true
		header = append(header, e.name)
	}

	b := &Batch{Category: spec.Category, Columns: header}
	width := len(header)
	for _, rec := range recs {
		parent := make(records.Row, len(emits))
		for i, e := range emits {
			parent[i] = t.cell(spec.Category, e, rec, b)
		}

		if spec.Expand == nil {
			b.Rows = append(b.Rows, parent)
			continue
		}

		elems := resolveList(expandPath, rec)
		if len(elems) == 0 {
			row := make(records.Row, len(emits), width)
			copy(row, parent)
			for range expandEmits {
				row = append(row, records.Null())
			}
			b.Rows = append(b.Rows, row)
			continue
		}
		for _, el := range elems {
			row := make(records.Row, len(emits), width)
			copy(row, parent)
			for _, e := range expandEmits {
				row = append(row, t.cell(spec.Category, e, el, b))
			}
			b.Rows = append(b.Rows, row)
		}
	}
	return b, nil
}

// cell resolves and converts one output cell. Missing values are null
// without noise; convertible-but-broken values are null plus a warning.
func (t *Transformer) cell(category string, e emitCol, doc any, b *Batch) records.Field {
	v, ok := e.path.Resolve(doc)
	if !ok {
		return records.Null()
	}
	if e.idx >= 0 {
		v = listElem(v, e.idx, t.opts.Separator)
		if v == nil {
			return records.Null()
		}
	} else if e.col.Multi == MultiJoin {
		return records.String(joinList(v, t.opts.Separator))
	}

	f, ok := convertValue(e.col.Transform, v, t.opts.Suffixes, t.opts.DateLayouts)
	if !ok {
		b.Warnings++
		t.logf("warn=parse_failed category=%s column=%s transform=%s value=%q",
			category, e.name, e.col.Transform, valueString(v))
		return records.Null()
	}
	return f
}

func (t *Transformer) logf(format string, v ...any) {
	if t.opts.Logger != nil {
		t.opts.Logger.Printf(format, v...)
	}
}

// convertValue applies one declared conversion. ok=false means the
// value was present but unusable and the caller should warn; a null
// field with ok=true means the value was empty-ish ("" or "-") and not
// worth a warning.
func convertValue(transform string, v any, suffixes parse.Suffixes, layouts []string) (records.Field, bool) {
	if transform == "" {
		return naturalField(v), true
	}

	s, empty := scalarString(v)
	if empty {
		return records.Null(), true
	}

	switch transform {
	case TransformCurrency:
		if f, ok := parse.Money(s, suffixes); ok {
			return records.Float(f), true
		}
	case TransformDate:
		if iso, ok := parse.Date(s, layouts); ok {
			return records.Date(iso), true
		}
	case TransformTimestamp:
		if ts, ok := parse.Timestamp(s); ok {
			return records.Timestamp(ts), true
		}
	case TransformInteger:
		if n, isNum := v.(json.Number); isNum {
			if i, err := n.Int64(); err == nil {
				return records.Integer(i), true
			}
			return records.Null(), false
		}
		if i, ok := parse.Integer(s); ok {
			return records.Integer(i), true
		}
	case TransformFloat:
		if n, isNum := v.(json.Number); isNum {
			if f, err := n.Float64(); err == nil {
				return records.Float(f), true
			}
			return records.Null(), false
		}
		if f, ok := parse.Float(s); ok {
			return records.Float(f), true
		}
	case TransformBoolean:
		if bv, isBool := v.(bool); isBool {
			return records.Boolean(bv), true
		}
		if bv, ok := parse.Boolean(s); ok {
			return records.Boolean(bv), true
		}
	case TransformHeight:
		if f, ok := parse.Height(s); ok {
			return records.Float(f), true
		}
	case TransformShirtNumber:
		if i, ok := parse.ShirtNumber(s); ok {
			return records.Integer(i), true
		}
	case TransformMinutes:
		if i, ok := parse.Minutes(s); ok {
			return records.Integer(i), true
		}
	case TransformDays:
		if i, ok := parse.Days(s); ok {
			return records.Integer(i), true
		}
	case TransformGoalsScored:
		if scored, _, ok := parse.Goals(s); ok {
			return records.Integer(scored), true
		}
	case TransformGoalsConceded:
		if _, conceded, ok := parse.Goals(s); ok {
			return records.Integer(conceded), true
		}
	}
	return records.Null(), false
}

// naturalField types an untransformed value by what JSON decoding gave
// us. Containers are kept as JSON text so the cell stays one column.
func naturalField(v any) records.Field {
	switch c := v.(type) {
	case string:
		return records.String(c)
	case json.Number:
		if i, err := c.Int64(); err == nil {
			return records.Integer(i)
		}
		if f, err := c.Float64(); err == nil {
			return records.Float(f)
		}
		return records.String(c.String())
	case bool:
		return records.Boolean(c)
	case float64:
		return records.Float(c)
	case int:
		return records.Integer(int64(c))
	case int64:
		return records.Integer(c)
	default:
		return records.String(valueString(v))
	}
}

// scalarString renders a scalar for the string-based parsers. empty=true
// flags values the parsers should skip silently.
func scalarString(v any) (s string, empty bool) {
	switch c := v.(type) {
	case string:
		s = c
	case json.Number:
		s = c.String()
	case bool:
		s = strconv.FormatBool(c)
	case nil:
		return "", true
	default:
		s = valueString(v)
	}
	if s == "" || s == "-" {
		return s, true
	}
	return s, false
}

func valueString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(buf)
}

// listLen reports how many cells a value occupies under multi=columns.
// JSON arrays count elements, strings count separator-split parts,
// scalars count one.
func listLen(v any, sep string) int {
	switch c := v.(type) {
	case []any:
		return len(c)
	case string:
		return len(parse.SplitMulti(c, sep))
	default:
		return 1
	}
}

// listElem picks element idx, or nil past the end. Short lists pad with
// nulls so every row keeps the batch header width.
func listElem(v any, idx int, sep string) any {
	switch c := v.(type) {
	case []any:
		if idx < len(c) {
			return c[idx]
		}
		return nil
	case string:
		parts := parse.SplitMulti(c, sep)
		if idx < len(parts) {
			return parts[idx]
		}
		return nil
	default:
		if idx == 0 {
			return v
		}
		return nil
	}
}

func joinList(v any, sep string) string {
	switch c := v.(type) {
	case []any:
		out := ""
		for i, el := range c {
			if i > 0 {
				out += sep
			}
			out += valueString(el)
		}
		return out
	case string:
		return c
	default:
		return valueString(v)
	}
}

// resolveList resolves the expand path to a list of elements. A single
// object is treated as a one-element list; anything else is empty.
func resolveList(p Path, rec records.Raw) []any {
	v, ok := p.Resolve(rec)
	if !ok {
		return nil
	}
	switch c := v.(type) {
	case []any:
		return c
	case map[string]any:
		return []any{c}
	case records.Raw:
		return []any{map[string]any(c)}
	default:
		return nil
	}
}
