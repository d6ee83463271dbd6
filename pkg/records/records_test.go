package records

import (
	"encoding/json"
	"testing"
)

//
// Field.Render
//

// TestFieldRender verifies delimited-output formatting for every value kind.
//
// Floats must render without exponents so downstream SQL engines read them
// as plain numerics; nulls must render as the caller's sentinel verbatim.
func TestFieldRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		field    Field
		sentinel string
		want     string
	}{
		{"string", String("Player X"), "", "Player X"},
		{"integer", Integer(7), "", "7"},
		{"float whole", Float(1200000), "", "1200000"},
		{"float fraction", Float(1.87), "", "1.87"},
		{"boolean", Boolean(true), "", "true"},
		{"date", Date("2021-05-03"), "", "2021-05-03"},
		{"timestamp", Timestamp("2021-05-03T10:00:00Z"), "", "2021-05-03T10:00:00Z"},
		{"json number passthrough", Field{Kind: KindInteger, Value: json.Number("42")}, "", "42"},
		{"null empty sentinel", Null(), "", ""},
		{"null literal sentinel", Null(), "\\N", "\\N"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.field.Render(tt.sentinel); got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.sentinel, got, tt.want)
			}
		})
	}
}

// TestNullCarriesNoKind verifies that null fields report IsNull and keep an
// empty Kind, so batch inference never counts nulls as type observations.
func TestNullCarriesNoKind(t *testing.T) {
	t.Parallel()

	n := Null()
	if !n.IsNull() {
		t.Fatalf("Null().IsNull() = false, want true")
	}
	if n.Kind != "" {
		t.Fatalf("Null().Kind = %q, want empty", n.Kind)
	}
	if got := String("x"); got.IsNull() {
		t.Fatalf("String(%q).IsNull() = true, want false", "x")
	}
}
