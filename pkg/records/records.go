// Package records holds the data model shared by the fetch, transform and
// schema layers: raw scraped documents, typed field values, and flat rows.
package records

import (
	"encoding/json"
	"strconv"
)

// Raw is one scraped entity as decoded from JSON (players, clubs, transfers,
// standings rows, ...). Values are whatever encoding/json produced with
// UseNumber enabled: string, json.Number, bool, nil, []any, map[string]any.
type Raw map[string]any

// Kind is the inferred primitive kind of a field value.
type Kind string

const (
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindTimestamp Kind = "timestamp"
)

// Field is a single typed cell: a value tagged with its Kind.
//
// A null field has Value == nil; its Kind is left empty because a null
// observation carries no type information (the column's kind comes from the
// non-null observations in the batch, or from the catalog).
type Field struct {
	Kind  Kind
	Value any
}

// Row is an ordered sequence of Fields matching a category's column list.
// Invariant: len(row) always equals the effective column count of the batch
// it belongs to.
type Row []Field

// Null returns the null field.
func Null() Field { return Field{} }

// IsNull reports whether the field carries no value.
func (f Field) IsNull() bool { return f.Value == nil }

func String(s string) Field     { return Field{Kind: KindString, Value: s} }
func Integer(i int64) Field     { return Field{Kind: KindInteger, Value: i} }
func Float(v float64) Field     { return Field{Kind: KindFloat, Value: v} }
func Boolean(b bool) Field      { return Field{Kind: KindBoolean, Value: b} }
func Date(iso string) Field     { return Field{Kind: KindDate, Value: iso} }
func Timestamp(ts string) Field { return Field{Kind: KindTimestamp, Value: ts} }

// Render formats the field for delimited output. Null fields render as the
// given sentinel. Floats use the shortest representation that round-trips,
// so whole values stay free of exponents ("1200000", not "1.2e+06").
func (f Field) Render(nullSentinel string) string {
	if f.IsNull() {
		return nullSentinel
	}
	switch v := f.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		// Unexpected dynamic type; fall back to JSON so the cell stays one
		// token and the row keeps its width.
		b, err := json.Marshal(v)
		if err != nil {
			return nullSentinel
		}
		return string(b)
	}
}
