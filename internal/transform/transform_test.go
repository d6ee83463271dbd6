package transform

import (
	"fmt"
	"reflect"
	"testing"

	"footstats/internal/parse"
	"footstats/pkg/records"
)

// recordingLogger collects log lines so tests can assert on warnings.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

//
// Transformer.Apply
//

// TestApplyPlayerRecord walks one fully typed record through a spec:
// every declared column lands in the row at its declared position with
// its declared type.
func TestApplyPlayerRecord(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_injuries",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "name", Path: "name"},
			{Name: "market_value", Path: "market_value", Transform: TransformCurrency},
			{Name: "injury_date", Path: "injury_date", Transform: TransformDate},
		},
	}
	rec := mustDecode(t, `{"id": 7, "name": "Player X", "market_value": "€1.2m", "injury_date": "2021-05-03"}`)

	b, err := New(Options{}).Apply(spec, []records.Raw{rec})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	wantCols := []string{"id", "name", "market_value", "injury_date"}
	if !reflect.DeepEqual(b.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", b.Columns, wantCols)
	}
	if len(b.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(b.Rows))
	}
	want := records.Row{
		records.Integer(7),
		records.String("Player X"),
		records.Float(1200000),
		records.Date("2021-05-03"),
	}
	if !reflect.DeepEqual(b.Rows[0], want) {
		t.Fatalf("row = %#v, want %#v", b.Rows[0], want)
	}
	if b.Warnings != 0 {
		t.Fatalf("warnings = %d, want 0", b.Warnings)
	}
}

// TestApplyRowWidth feeds records with wildly different shapes and
// checks the structural invariant: every emitted row is exactly as wide
// as the header, whatever was missing from the source.
func TestApplyRowWidth(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_profile",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "height", Path: "height", Transform: TransformHeight},
			{Name: "club", Path: "club.name"},
			{Name: "agent", Path: "agent.name"},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{"id": 1, "height": "1,87 m", "club": {"name": "Arsenal"}, "agent": {"name": "X"}}`),
		mustDecode(t, `{"id": 2}`),
		mustDecode(t, `{"id": 3, "club": "not an object"}`),
		mustDecode(t, `{}`),
	}

	b, err := New(Options{}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(b.Rows) != len(recs) {
		t.Fatalf("rows = %d, want %d", len(b.Rows), len(recs))
	}
	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			t.Fatalf("row %d has %d cells, header has %d", i, len(row), len(b.Columns))
		}
	}
	// Missing and wrongly shaped values are nulls, silently.
	if !b.Rows[1][1].IsNull() || !b.Rows[2][2].IsNull() || !b.Rows[3][0].IsNull() {
		t.Fatalf("missing values did not map to null: %#v", b.Rows)
	}
	if b.Warnings != 0 {
		t.Fatalf("missing values produced %d warnings, want 0", b.Warnings)
	}
}

// TestApplyParseWarnings distinguishes the three outcomes for a typed
// cell: parsed, empty-ish (null, quiet), unparseable (null, warned).
func TestApplyParseWarnings(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_market_value",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "value", Path: "value", Transform: TransformCurrency},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{"id": 1, "value": "€500k"}`),
		mustDecode(t, `{"id": 2, "value": "-"}`),
		mustDecode(t, `{"id": 3, "value": "priceless"}`),
		mustDecode(t, `{"id": 4}`),
	}

	log := &recordingLogger{}
	b, err := New(Options{Logger: log}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := b.Rows[0][1]; got != records.Float(500000) {
		t.Fatalf("parsed cell = %#v, want 500000", got)
	}
	for i := 1; i < 4; i++ {
		if !b.Rows[i][1].IsNull() {
			t.Fatalf("row %d value cell = %#v, want null", i, b.Rows[i][1])
		}
	}
	if b.Warnings != 1 {
		t.Fatalf("warnings = %d, want 1 (only the unparseable value)", b.Warnings)
	}
	if len(log.lines) != 1 {
		t.Fatalf("logged %d lines, want 1: %v", len(log.lines), log.lines)
	}
}

// TestApplyExpand covers the one-to-many policy: each history entry
// becomes its own row, parent scalars repeat on every row, entry order
// is preserved, and a record without history still yields one row.
func TestApplyExpand(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_market_value",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "current_value", Path: "marketValue", Transform: TransformCurrency},
		},
		Expand: &Expand{
			Path: "marketValueHistory",
			Columns: []Column{
				{Name: "date", Path: "date", Transform: TransformDate},
				{Name: "club_name", Path: "clubName"},
				{Name: "historical_marketvalue", Path: "marketValue", Transform: TransformCurrency},
			},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{
			"id": 10,
			"marketValue": "€2m",
			"marketValueHistory": [
				{"date": "2020-01-01", "clubName": "A", "marketValue": "€1m"},
				{"date": "2021-01-01", "clubName": "B", "marketValue": "€1.5m"},
				{"date": "2022-01-01", "clubName": "B", "marketValue": "€2m"}
			]
		}`),
		mustDecode(t, `{"id": 11, "marketValue": "€750k"}`),
	}

	b, err := New(Options{}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	wantCols := []string{"id", "current_value", "date", "club_name", "historical_marketvalue"}
	if !reflect.DeepEqual(b.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", b.Columns, wantCols)
	}
	if len(b.Rows) != 4 {
		t.Fatalf("rows = %d, want 4 (3 history + 1 without)", len(b.Rows))
	}
	// Parent scalars repeat on each expanded row.
	for i := 0; i < 3; i++ {
		if b.Rows[i][0] != records.Integer(10) || b.Rows[i][1] != records.Float(2000000) {
			t.Fatalf("row %d lost parent scalars: %#v", i, b.Rows[i])
		}
	}
	// Source order of the history entries is preserved.
	wantDates := []string{"2020-01-01", "2021-01-01", "2022-01-01"}
	for i, d := range wantDates {
		if b.Rows[i][2] != records.Date(d) {
			t.Fatalf("row %d date = %#v, want %s", i, b.Rows[i][2], d)
		}
	}
	if b.Rows[0][4] != records.Float(1000000) {
		t.Fatalf("historical value = %#v, want 1000000", b.Rows[0][4])
	}
	// No history: one row, entry columns null.
	last := b.Rows[3]
	if last[0] != records.Integer(11) || !last[2].IsNull() || !last[3].IsNull() || !last[4].IsNull() {
		t.Fatalf("history-less record row = %#v", last)
	}
}

// TestApplyMultiColumns checks the column-spread policy: numbered
// columns sized to the widest list in the batch, short lists padded
// with nulls, scalar values treated as one-element lists.
func TestApplyMultiColumns(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_profile",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "citizenship", Path: "citizenship", Multi: MultiColumns},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{"id": 1, "citizenship": ["England", "Jamaica"]}`),
		mustDecode(t, `{"id": 2, "citizenship": ["France"]}`),
		mustDecode(t, `{"id": 3, "citizenship": "Ghana"}`),
		mustDecode(t, `{"id": 4}`),
	}

	b, err := New(Options{}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	wantCols := []string{"id", "citizenship_1", "citizenship_2"}
	if !reflect.DeepEqual(b.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", b.Columns, wantCols)
	}
	wantRows := []records.Row{
		{records.Integer(1), records.String("England"), records.String("Jamaica")},
		{records.Integer(2), records.String("France"), records.Null()},
		{records.Integer(3), records.String("Ghana"), records.Null()},
		{records.Integer(4), records.Null(), records.Null()},
	}
	if !reflect.DeepEqual(b.Rows, wantRows) {
		t.Fatalf("rows = %#v, want %#v", b.Rows, wantRows)
	}
}

// TestApplyMultiJoin checks the collapse policy: the whole list lands
// in one delimited cell and the header keeps a single column.
func TestApplyMultiJoin(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_profile",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "positions", Path: "positions", Multi: MultiJoin},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{"id": 1, "positions": ["CB", "RB"]}`),
		mustDecode(t, `{"id": 2, "positions": "GK"}`),
	}

	b, err := New(Options{}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(b.Columns) != 2 {
		t.Fatalf("columns = %v, want 2 entries", b.Columns)
	}
	if b.Rows[0][1] != records.String("CB,RB") {
		t.Fatalf("joined cell = %#v, want CB,RB", b.Rows[0][1])
	}
	if b.Rows[1][1] != records.String("GK") {
		t.Fatalf("scalar cell = %#v, want GK", b.Rows[1][1])
	}
}

// TestApplyIdempotent runs the same spec over the same records twice
// and expects byte-for-byte identical batches.
func TestApplyIdempotent(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "players_transfers",
		Columns: []Column{
			{Name: "id", Path: "id"},
			{Name: "fee", Path: "fee", Transform: TransformCurrency},
			{Name: "date", Path: "date", Transform: TransformDate},
		},
		Expand: &Expand{
			Path:    "transfers",
			Columns: []Column{{Name: "to_club", Path: "to.clubName"}},
		},
	}
	recs := []records.Raw{
		mustDecode(t, `{"id": 1, "fee": "€10.5m", "date": "03.05.2021", "transfers": [{"to": {"clubName": "X"}}, {"to": {"clubName": "Y"}}]}`),
		mustDecode(t, `{"id": 2, "fee": "bad", "date": "soon"}`),
	}

	tr := New(Options{})
	first, err := tr.Apply(spec, recs)
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	second, err := tr.Apply(spec, recs)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Apply is not idempotent:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

// TestApplyRecordOrder checks that output rows follow input record
// order even when some records expand and some do not.
func TestApplyRecordOrder(t *testing.T) {
	t.Parallel()

	spec := Spec{
		Category: "club_profiles",
		Columns:  []Column{{Name: "id", Path: "id"}},
	}
	var recs []records.Raw
	for i := 0; i < 10; i++ {
		recs = append(recs, mustDecode(t, fmt.Sprintf(`{"id": %d}`, i)))
	}

	b, err := New(Options{}).Apply(spec, recs)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i, row := range b.Rows {
		if row[0] != records.Integer(int64(i)) {
			t.Fatalf("row %d carries id %#v", i, row[0])
		}
	}
}

// TestApplyRejectsBrokenSpec makes sure a bad declaration fails the
// whole batch up front instead of producing a partial file.
func TestApplyRejectsBrokenSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec Spec
	}{
		{"no columns", Spec{Category: "x"}},
		{"empty path", Spec{Category: "x", Columns: []Column{{Name: "a", Path: ""}}}},
		{"unknown transform", Spec{Category: "x", Columns: []Column{{Name: "a", Path: "a", Transform: "shout"}}}},
		{"duplicate after normalization", Spec{Category: "x", Columns: []Column{
			{Name: "Goal Difference", Path: "a"},
			{Name: "goal_difference", Path: "b"},
		}}},
		{"empty normalized name", Spec{Category: "x", Columns: []Column{{Name: "+/-", Path: "a"}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(Options{}).Apply(tt.spec, nil); err == nil {
				t.Fatalf("Apply accepted spec %+v", tt.spec)
			}
		})
	}
}

//
// convertValue
//

// TestConvertValue spot-checks each declared transform against the
// cleanup parsers behind it.
func TestConvertValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		transform string
		in        any
		want      records.Field
		wantOK    bool
	}{
		{"currency millions", TransformCurrency, "€10.5m", records.Float(10500000), true},
		{"currency thousands", TransformCurrency, "€500k", records.Float(500000), true},
		{"currency garbage", TransformCurrency, "priceless", records.Null(), false},
		{"date iso", TransformDate, "2021-05-03", records.Date("2021-05-03"), true},
		{"date german", TransformDate, "03.05.2021", records.Date("2021-05-03"), true},
		{"date garbage", TransformDate, "soon", records.Null(), false},
		{"timestamp", TransformTimestamp, "2021-05-03T10:00:00Z", records.Timestamp("2021-05-03T10:00:00Z"), true},
		{"integer from number", TransformInteger, mustNumber("42"), records.Integer(42), true},
		{"integer from string", TransformInteger, "42", records.Integer(42), true},
		{"integer from float number", TransformInteger, mustNumber("4.2"), records.Null(), false},
		{"float from number", TransformFloat, mustNumber("4.2"), records.Float(4.2), true},
		{"boolean native", TransformBoolean, true, records.Boolean(true), true},
		{"boolean word", TransformBoolean, "yes", records.Boolean(true), true},
		{"height", TransformHeight, "1,87 m", records.Float(1.87), true},
		{"shirt number", TransformShirtNumber, "#10", records.Integer(10), true},
		{"minutes", TransformMinutes, "2.303'", records.Integer(2303), true},
		{"days", TransformDays, "5 days", records.Integer(5), true},
		{"goals scored", TransformGoalsScored, "2:1", records.Integer(2), true},
		{"goals conceded", TransformGoalsConceded, "2:1", records.Integer(1), true},
		{"empty is quiet", TransformCurrency, "", records.Null(), true},
		{"dash is quiet", TransformDate, "-", records.Null(), true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := convertValue(tt.transform, tt.in, parse.DefaultSuffixes(), parse.DateLayouts)
			if ok != tt.wantOK {
				t.Fatalf("convertValue(%s, %v) ok = %v, want %v", tt.transform, tt.in, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("convertValue(%s, %v) = %#v, want %#v", tt.transform, tt.in, got, tt.want)
			}
		})
	}
}

// TestNaturalField checks untyped cells: JSON numbers split into
// integer and float, containers become JSON text.
func TestNaturalField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want records.Field
	}{
		{"string", "abc", records.String("abc")},
		{"integer number", mustNumber("7"), records.Integer(7)},
		{"float number", mustNumber("7.5"), records.Float(7.5)},
		{"bool", true, records.Boolean(true)},
		{"nested object", map[string]any{"a": "b"}, records.String(`{"a":"b"}`)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := naturalField(tt.in); got != tt.want {
				t.Fatalf("naturalField(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
