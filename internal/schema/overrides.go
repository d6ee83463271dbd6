package schema

import (
	"strings"

	"footstats/pkg/records"
)

// Override forces a kind onto columns matched by name, after inference
// and before reconciliation. Identifier-bearing columns come out of the
// API as numbers but must stay strings in the catalog, and a handful of
// date columns arrive in formats inference cannot recognize.
type Override struct {
	Exact    string       `json:"exact,omitempty"`
	Contains string       `json:"contains,omitempty"`
	Suffix   string       `json:"suffix,omitempty"`
	Kind     records.Kind `json:"kind"`
}

func (o Override) matches(column string) bool {
	if o.Exact != "" && column == o.Exact {
		return true
	}
	if o.Contains != "" && strings.Contains(column, o.Contains) {
		return true
	}
	return o.Suffix != "" && strings.HasSuffix(column, o.Suffix)
}

// DefaultOverrides is the standing rule set. Order matters: the first
// match wins, so the updatedat rule sits above the broader date rule.
func DefaultOverrides() []Override {
	return []Override{
		{Exact: "id", Kind: records.KindString},
		{Suffix: "_id", Kind: records.KindString},
		{Contains: "clubid", Kind: records.KindString},
		{Contains: "updatedat", Kind: records.KindTimestamp},
		{Contains: "date", Kind: records.KindDate},
	}
}

// ApplyOverrides returns a copy of the descriptor with matching columns
// forced to their declared kinds.
func ApplyOverrides(d Descriptor, overrides []Override) Descriptor {
	if len(overrides) == 0 {
		return d
	}
	out := Descriptor{Columns: make([]Column, len(d.Columns))}
	copy(out.Columns, d.Columns)
	for i, c := range out.Columns {
		for _, o := range overrides {
			if o.matches(c.Name) {
				out.Columns[i].Kind = o.Kind
				break
			}
		}
	}
	return out
}
