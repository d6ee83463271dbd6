package schema

import (
	"reflect"
	"testing"

	"footstats/pkg/records"
)

//
// Unify / Widens
//

// TestUnify pins the lattice: integer and float merge to float, any
// other disagreement lands on string, the empty kind is the identity.
func TestUnify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b records.Kind
		want records.Kind
	}{
		{"same kind", records.KindInteger, records.KindInteger, records.KindInteger},
		{"int and float", records.KindInteger, records.KindFloat, records.KindFloat},
		{"float and int", records.KindFloat, records.KindInteger, records.KindFloat},
		{"int and string", records.KindInteger, records.KindString, records.KindString},
		{"date and string", records.KindDate, records.KindString, records.KindString},
		{"date and int", records.KindDate, records.KindInteger, records.KindString},
		{"bool and float", records.KindBoolean, records.KindFloat, records.KindString},
		{"empty left", "", records.KindDate, records.KindDate},
		{"empty right", records.KindFloat, "", records.KindFloat},
		{"both empty", "", "", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Unify(tt.a, tt.b); got != tt.want {
				t.Fatalf("Unify(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestWidens checks the one-way widening relation reconciliation
// enforces.
func TestWidens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from, to records.Kind
		want     bool
	}{
		{"int to float", records.KindInteger, records.KindFloat, true},
		{"int to string", records.KindInteger, records.KindString, true},
		{"date to string", records.KindDate, records.KindString, true},
		{"float to int is narrowing", records.KindFloat, records.KindInteger, false},
		{"string to int is narrowing", records.KindString, records.KindInteger, false},
		{"string to date is narrowing", records.KindString, records.KindDate, false},
		{"float to date", records.KindFloat, records.KindDate, false},
		{"same is fine", records.KindDate, records.KindDate, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Widens(tt.from, tt.to); got != tt.want {
				t.Fatalf("Widens(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

//
// Infer
//

func row(fields ...records.Field) records.Row { return records.Row(fields) }

// TestInfer folds small batches and checks the most general kind per
// column, including mixed and all-null columns.
func TestInfer(t *testing.T) {
	t.Parallel()

	columns := []string{"ints", "mixed_num", "mixed_any", "dates", "empty"}
	rows := []records.Row{
		row(records.Integer(1), records.Integer(1), records.Integer(1), records.Date("2021-01-01"), records.Null()),
		row(records.Integer(2), records.Float(2.5), records.String("x"), records.Date("2021-01-02"), records.Null()),
		row(records.Integer(3), records.Integer(3), records.Null(), records.Null(), records.Null()),
	}

	got := Infer(columns, rows)
	want := Descriptor{Columns: []Column{
		{Name: "ints", Kind: records.KindInteger},
		{Name: "mixed_num", Kind: records.KindFloat},
		{Name: "mixed_any", Kind: records.KindString},
		{Name: "dates", Kind: records.KindDate},
		{Name: "empty", Kind: ""},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Infer = %+v, want %+v", got, want)
	}
}

// TestInferNoRows keeps every column undecided when there is nothing to
// look at.
func TestInferNoRows(t *testing.T) {
	t.Parallel()

	d := Infer([]string{"a", "b"}, nil)
	for _, c := range d.Columns {
		if c.Kind != "" {
			t.Fatalf("column %s inferred %q from zero rows", c.Name, c.Kind)
		}
	}
}

//
// ApplyOverrides
//

// TestApplyOverrides checks the name rules: id columns pin to string,
// updatedat beats the broader date rule, untouched columns keep their
// inferred kind, and the input descriptor is not mutated.
func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	in := Descriptor{Columns: []Column{
		{Name: "id", Kind: records.KindInteger},
		{Name: "club_id", Kind: records.KindInteger},
		{Name: "fromclubid", Kind: records.KindInteger},
		{Name: "updatedat", Kind: records.KindString},
		{Name: "injury_date", Kind: records.KindString},
		{Name: "market_value", Kind: records.KindFloat},
	}}

	got := ApplyOverrides(in, DefaultOverrides())
	want := Descriptor{Columns: []Column{
		{Name: "id", Kind: records.KindString},
		{Name: "club_id", Kind: records.KindString},
		{Name: "fromclubid", Kind: records.KindString},
		{Name: "updatedat", Kind: records.KindTimestamp},
		{Name: "injury_date", Kind: records.KindDate},
		{Name: "market_value", Kind: records.KindFloat},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ApplyOverrides = %+v, want %+v", got, want)
	}
	if in.Columns[0].Kind != records.KindInteger {
		t.Fatal("ApplyOverrides mutated its input")
	}
}

//
// Reconcile
//

// TestReconcile covers the additive contract: new columns are added,
// safe widenings pass, narrowings are rejected as conflicts, catalog
// columns missing from the batch stay untouched, and all-null columns
// defer to the catalog when they exist there.
func TestReconcile(t *testing.T) {
	t.Parallel()

	d := Descriptor{Columns: []Column{
		{Name: "id", Kind: records.KindInteger},
		{Name: "market_value", Kind: records.KindFloat},
		{Name: "name", Kind: records.KindInteger},
		{Name: "note", Kind: ""},
		{Name: "joined", Kind: records.KindDate},
		{Name: "brand_new", Kind: records.KindFloat},
		{Name: "new_empty", Kind: ""},
	}}
	existing := map[string]string{
		"id":           "bigint",
		"market_value": "bigint",
		"name":         "string",
		"note":         "string",
		"joined":       "date",
		"legacy_only":  "boolean",
	}

	changes, conflicts := Reconcile(d, existing)

	wantChanges := []Change{
		{Column: "market_value", FromType: "bigint", ToType: "double", Kind: ChangeWiden},
		{Column: "brand_new", ToType: "double", Kind: ChangeAdd},
		{Column: "new_empty", ToType: "string", Kind: ChangeAdd},
	}
	if !reflect.DeepEqual(changes, wantChanges) {
		t.Fatalf("changes = %+v, want %+v", changes, wantChanges)
	}

	wantConflicts := []Conflict{
		{Column: "name", CatalogType: "string", InferredType: "bigint"},
	}
	if !reflect.DeepEqual(conflicts, wantConflicts) {
		t.Fatalf("conflicts = %+v, want %+v", conflicts, wantConflicts)
	}
}

// TestReconcileUnmanagedType leaves columns with catalog types outside
// the lattice alone unless the inferred type actually disagrees.
func TestReconcileUnmanagedType(t *testing.T) {
	t.Parallel()

	d := Descriptor{Columns: []Column{
		{Name: "payload", Kind: records.KindString},
		{Name: "stats", Kind: records.KindFloat},
	}}
	existing := map[string]string{
		"payload": "struct<a:string>",
		"stats":   "decimal(10,2)",
	}

	changes, conflicts := Reconcile(d, existing)
	if len(changes) != 0 {
		t.Fatalf("changes = %+v, want none", changes)
	}
	wantConflicts := []Conflict{
		{Column: "payload", CatalogType: "struct<a:string>", InferredType: "string"},
		{Column: "stats", CatalogType: "decimal(10,2)", InferredType: "double"},
	}
	if !reflect.DeepEqual(conflicts, wantConflicts) {
		t.Fatalf("conflicts = %+v, want %+v", conflicts, wantConflicts)
	}
}

//
// CatalogType round trip
//

// TestCatalogTypeRoundTrip makes sure every kind survives the trip into
// the catalog vocabulary and back.
func TestCatalogTypeRoundTrip(t *testing.T) {
	t.Parallel()

	kinds := []records.Kind{
		records.KindString, records.KindInteger, records.KindFloat,
		records.KindBoolean, records.KindDate, records.KindTimestamp,
	}
	for _, k := range kinds {
		k := k
		t.Run(string(k), func(t *testing.T) {
			t.Parallel()
			back, ok := KindFromCatalogType(CatalogType(k))
			if !ok || back != k {
				t.Fatalf("round trip %q -> %q -> %q (ok=%v)", k, CatalogType(k), back, ok)
			}
		})
	}

	if _, ok := KindFromCatalogType("struct<a:int>"); ok {
		t.Fatal("struct type should not map into the lattice")
	}
}
