// Package probe infers a category spec from a sample of raw records.
//
// The probe bootstraps category configuration: pointed at a raw payload
// (a file, stdin, or the latest stored raw object) it proposes a
// transform.Spec with guessed transforms, ready to be edited into the
// pipeline config. Guesses favor precision over recall: a transform is
// suggested only when every sampled value agrees with it, so a wrong
// guess means the sample itself was misleading.
package probe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"footstats/internal/parse"
	"footstats/internal/schema"
	"footstats/internal/transform"
	"footstats/pkg/records"
)

const (
	defaultMaxRecords = 200
	maxSampleValues   = 8
)

// Options bound and steer one inference run.
type Options struct {
	// Category names the emitted spec. Required.
	Category string

	// MaxRecords caps how many records are considered. Zero means 200.
	MaxRecords int

	// Expand forces the row-expansion path instead of auto-selecting
	// the largest list of objects in the sample.
	Expand string

	// Suffixes and DateLayouts steer value sniffing and the trial
	// apply. Zero values use the parse package defaults.
	Suffixes    parse.Suffixes
	DateLayouts []string
}

// ColumnReport describes one inferred column for human review. Type is
// the catalog type the trial apply settled on.
type ColumnReport struct {
	Name      string
	Path      string
	Transform string
	Multi     transform.Multi
	Expanded  bool
	Type      string
	Sample    string
}

// Result is one complete inference outcome. Columns lists the declared
// columns in spec order, record-level first.
type Result struct {
	Spec    transform.Spec
	Records int
	Rows    int
	Columns []ColumnReport
}

// Sample reads raw records from r. The root value may be a JSON array
// of objects, a {"data": [...]} envelope as written by the raw stage,
// or a single object; additional top-level objects after the first
// value are consumed as an NDJSON stream. Numbers are kept as
// json.Number so integer identity survives into the trial apply.
func Sample(r io.Reader, max int) ([]records.Raw, error) {
	if max <= 0 {
		max = defaultMaxRecords
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode sample: %w", err)
	}

	out := make([]records.Raw, 0, 16)
	emit := func(m map[string]any) {
		if m != nil && len(out) < max {
			out = append(out, records.Raw(m))
		}
	}

	switch v := root.(type) {
	case []any:
		for _, el := range v {
			if m, ok := el.(map[string]any); ok {
				emit(m)
			}
		}
	case map[string]any:
		if list, ok := objectList(v["data"]); ok {
			for _, m := range list {
				emit(m)
			}
		} else {
			emit(v)
		}
	default:
		return nil, fmt.Errorf("sample root is %T, want object or array", root)
	}

	for len(out) < max {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			break
		}
		emit(obj)
	}
	return out, nil
}

// Infer proposes a spec covering every scalar path seen in the sample.
// Lists of objects become row-expansion candidates (the largest one
// wins); lists of scalars become spread columns at record level and
// joined columns inside the expansion. The spec is trial-applied to the
// sample before it is returned, so a Result always renders.
func Infer(recs []records.Raw, opt Options) (Result, error) {
	if opt.Category == "" {
		return Result{}, errors.New("category is required")
	}
	if len(recs) == 0 {
		return Result{}, errors.New("no records sampled")
	}
	if opt.MaxRecords > 0 && len(recs) > opt.MaxRecords {
		recs = recs[:opt.MaxRecords]
	}

	stats := newPathStats()
	for _, rec := range recs {
		stats.observe(transform.Flatten(rec))
	}

	expandPath, err := chooseExpand(stats, opt.Expand)
	if err != nil {
		return Result{}, err
	}

	used := map[string]bool{}
	cols, reports := buildColumns(stats, expandPath, false, used, opt)
	if len(cols) == 0 {
		return Result{}, errors.New("no record-level columns in sample")
	}

	spec := transform.Spec{Category: opt.Category, Columns: cols}

	if expandPath != "" {
		elems := newPathStats()
		p, perr := transform.ParsePath(expandPath)
		if perr != nil {
			return Result{}, fmt.Errorf("expand path: %w", perr)
		}
		for _, rec := range recs {
			v, ok := p.Resolve(rec)
			if !ok {
				continue
			}
			list, _ := objectList(v)
			for _, el := range list {
				elems.observe(transform.Flatten(el))
			}
		}
		ecols, ereports := buildColumns(elems, "", true, used, opt)
		if len(ecols) > 0 {
			spec.Expand = &transform.Expand{Path: expandPath, Columns: ecols}
			reports = append(reports, ereports...)
		}
	}

	if issues := spec.Validate(); len(issues) > 0 {
		return Result{}, fmt.Errorf("inferred spec: %s", strings.Join(issues, "; "))
	}

	tr := transform.New(transform.Options{Suffixes: opt.Suffixes, DateLayouts: opt.DateLayouts})
	batch, err := tr.Apply(spec, recs)
	if err != nil {
		return Result{}, fmt.Errorf("trial apply: %w", err)
	}
	kinds := schema.ApplyOverrides(schema.Infer(batch.Columns, batch.Rows), schema.DefaultOverrides()).Kinds()

	for i := range reports {
		k, ok := kinds[reports[i].Name]
		if !ok {
			// A spread column renders as name_1..N; the first part
			// carries the settled kind.
			k = kinds[reports[i].Name+"_1"]
		}
		reports[i].Type = schema.CatalogType(k)
	}

	return Result{Spec: spec, Records: len(recs), Rows: len(batch.Rows), Columns: reports}, nil
}

// FormatReport renders a Result as a fixed-width table, record-level
// columns first and the expansion block after its path marker.
func FormatReport(res Result) string {
	if res.Records == 0 {
		return "spec report: no records sampled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "spec report:\tcategory=%s\trecords=%d\trows=%d\n", res.Spec.Category, res.Records, res.Rows)

	header := func() {
		fmt.Fprintf(&b, "%-28s\t%-9s\t%-12s\t%-7s\tsample\n", "column", "type", "transform", "multi")
	}
	row := func(c ColumnReport) {
		fmt.Fprintf(&b, "%-28s\t%-9s\t%-12s\t%-7s\t%s\n", c.Name, c.Type, c.Transform, string(c.Multi), strconv.Quote(c.Sample))
	}

	header()
	for _, c := range res.Columns {
		if !c.Expanded {
			row(c)
		}
	}
	if res.Spec.Expand != nil {
		fmt.Fprintf(&b, "expand: %s\n", res.Spec.Expand.Path)
		header()
		for _, c := range res.Columns {
			if c.Expanded {
				row(c)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// pathStats aggregates what the sample showed at each dotted path.
// Containers are walked through; only scalars and lists settle here.
type pathStats struct {
	paths map[string]*pathInfo
}

type pathInfo struct {
	scalars    []string // string scalar samples, capped
	nonString  bool     // a number or boolean was seen
	scalarList bool     // a list of scalars was seen
	objectList int      // total elements across lists of objects
}

func newPathStats() *pathStats { return &pathStats{paths: map[string]*pathInfo{}} }

func (st *pathStats) at(p string) *pathInfo {
	pi := st.paths[p]
	if pi == nil {
		pi = &pathInfo{}
		st.paths[p] = pi
	}
	return pi
}

// observe folds one record's flattened leaves into the stats. Arrays
// arrive whole from Flatten; everything else is a scalar observation.
func (st *pathStats) observe(leaves map[string]any) {
	for p, v := range leaves {
		if arr, ok := v.([]any); ok {
			pi := st.at(p)
			if list, ok := objectList(arr); ok {
				pi.objectList += len(list)
				continue
			}
			pi.scalarList = true
			for _, el := range arr {
				pi.addScalar(el)
			}
			continue
		}
		st.at(p).addScalar(v)
	}
}

func (pi *pathInfo) addScalar(v any) {
	switch s := v.(type) {
	case nil:
	case string:
		if s != "" && len(pi.scalars) < maxSampleValues {
			pi.scalars = append(pi.scalars, s)
		}
	default:
		pi.nonString = true
	}
}

// sorted returns the observed paths in deterministic order.
func (st *pathStats) sorted() []string {
	out := make([]string, 0, len(st.paths))
	for p := range st.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// chooseExpand picks the row-expansion path: the forced one when set,
// otherwise the list of objects with the most elements in the sample.
// Ties break toward the lexically smaller path.
func chooseExpand(st *pathStats, forced string) (string, error) {
	if forced != "" {
		pi := st.paths[forced]
		if pi == nil || pi.objectList == 0 {
			return "", fmt.Errorf("expand path %q: no list of objects in sample", forced)
		}
		return forced, nil
	}

	best := ""
	bestN := 0
	for _, p := range st.sorted() {
		if n := st.paths[p].objectList; n > bestN {
			best, bestN = p, n
		}
	}
	return best, nil
}

// buildColumns turns aggregated paths into declared columns. used keeps
// normalized names unique across the record-level and expanded blocks;
// collisions get a numeric suffix.
func buildColumns(st *pathStats, skip string, expanded bool, used map[string]bool, opt Options) ([]transform.Column, []ColumnReport) {
	var cols []transform.Column
	var reports []ColumnReport

	add := func(c transform.Column, pi *pathInfo) {
		c.Name = uniqueName(used, transform.NormalizeColumn(c.Name))
		if c.Name == "" {
			return
		}
		cols = append(cols, c)
		reports = append(reports, ColumnReport{
			Name:      c.Name,
			Path:      c.Path,
			Transform: c.Transform,
			Multi:     c.Multi,
			Expanded:  expanded,
			Sample:    firstSample(pi),
		})
	}

	for _, p := range st.sorted() {
		if p == skip {
			continue
		}
		pi := st.paths[p]

		switch {
		case pi.objectList > 0:
			// A list of objects that is not the expansion keeps its
			// JSON text in one cell.
			add(transform.Column{Name: p, Path: p}, pi)

		case pi.scalarList:
			c := transform.Column{Name: p, Path: p}
			if expanded {
				c.Multi = transform.MultiJoin
			} else {
				c.Multi = transform.MultiColumns
				c.Transform = guessTransform(transform.NormalizeColumn(p), pi, opt)
			}
			add(c, pi)

		default:
			tf := guessTransform(transform.NormalizeColumn(p), pi, opt)
			add(transform.Column{Name: p, Path: p, Transform: tf}, pi)
			if tf == "" && allScalars(pi, func(s string) bool {
				_, _, ok := parse.Goals(s)
				return ok && strings.Count(s, ":") == 1
			}) {
				// Scoreline notation: keep the raw cell and derive the
				// split columns beside it.
				add(transform.Column{Name: p + "_scored", Path: p, Transform: transform.TransformGoalsScored}, pi)
				add(transform.Column{Name: p + "_conceded", Path: p, Transform: transform.TransformGoalsConceded}, pi)
			}
		}
	}
	return cols, reports
}

func uniqueName(used map[string]bool, name string) string {
	if name == "" {
		return ""
	}
	candidate := name
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	used[candidate] = true
	return candidate
}

func firstSample(pi *pathInfo) string {
	if len(pi.scalars) > 0 {
		return pi.scalars[0]
	}
	return ""
}

// guessTransform suggests a conversion for a column. Name hints are
// tried first, then value shapes; every sampled value must agree. A
// column that ever produced a number or boolean keeps natural typing.
func guessTransform(name string, pi *pathInfo, opt Options) string {
	if pi.nonString || len(pi.scalars) == 0 {
		return ""
	}

	isDate := func(s string) bool {
		_, ok := parse.Date(s, opt.DateLayouts)
		return ok
	}
	isTimestamp := func(s string) bool {
		_, ok := parse.Timestamp(s)
		return ok
	}

	if strings.Contains(name, "updatedat") && allScalars(pi, isTimestamp) {
		return transform.TransformTimestamp
	}
	if strings.Contains(name, "date") && allScalars(pi, isDate) {
		return transform.TransformDate
	}

	switch {
	case allScalars(pi, func(s string) bool { return isCurrency(s, opt.Suffixes) }):
		return transform.TransformCurrency
	case allScalars(pi, isDate):
		return transform.TransformDate
	case allScalars(pi, isTimestamp):
		return transform.TransformTimestamp
	case allScalars(pi, isHeight):
		return transform.TransformHeight
	case allScalars(pi, isMinutes):
		return transform.TransformMinutes
	case allScalars(pi, isDays):
		return transform.TransformDays
	case allScalars(pi, isShirtNumber):
		return transform.TransformShirtNumber
	}
	return ""
}

func allScalars(pi *pathInfo, ok func(string) bool) bool {
	if pi.nonString || len(pi.scalars) == 0 {
		return false
	}
	for _, s := range pi.scalars {
		if !ok(s) {
			return false
		}
	}
	return true
}

// isCurrency requires an explicit currency symbol so bare numerals keep
// natural typing.
func isCurrency(s string, suffixes parse.Suffixes) bool {
	if s == "" {
		return false
	}
	switch []rune(s)[0] {
	case '€', '$', '£':
	default:
		return false
	}
	_, ok := parse.Money(s, suffixes)
	return ok
}

func isHeight(s string) bool {
	if !strings.HasSuffix(strings.TrimSpace(s), "m") || !strings.Contains(s, ",") {
		return false
	}
	_, ok := parse.Height(s)
	return ok
}

func isMinutes(s string) bool {
	if !strings.HasSuffix(strings.TrimSpace(s), "'") {
		return false
	}
	_, ok := parse.Minutes(s)
	return ok
}

func isDays(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(t, "day") && !strings.HasSuffix(t, "days") {
		return false
	}
	_, ok := parse.Days(s)
	return ok
}

func isShirtNumber(s string) bool {
	if !strings.HasPrefix(strings.TrimSpace(s), "#") {
		return false
	}
	_, ok := parse.ShirtNumber(s)
	return ok
}

// objectList reports whether v is a non-empty list whose elements are
// all objects, skipping explicit nulls.
func objectList(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if el == nil {
			continue
		}
		m, ok := el.(map[string]any)
		if !ok {
			return nil, false
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
