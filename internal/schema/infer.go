package schema

import "footstats/pkg/records"

// Column is one inferred column. An empty Kind means every observed
// value was null and the type decision is deferred to reconciliation.
type Column struct {
	Name string
	Kind records.Kind
}

// Descriptor is the inferred shape of one batch, in output column
// order.
type Descriptor struct {
	Columns []Column
}

// Kinds returns the name-to-kind view of the descriptor.
func (d Descriptor) Kinds() map[string]records.Kind {
	out := make(map[string]records.Kind, len(d.Columns))
	for _, c := range d.Columns {
		out[c.Name] = c.Kind
	}
	return out
}

// Infer folds every cell of the batch through the lattice, per column.
// Nulls contribute nothing. Rows narrower than the header only ever
// happen on malformed input; the missing tail counts as nulls.
func Infer(columns []string, rows []records.Row) Descriptor {
	kinds := make([]records.Kind, len(columns))
	for _, row := range rows {
		n := len(row)
		if n > len(columns) {
			n = len(columns)
		}
		for i := 0; i < n; i++ {
			if row[i].IsNull() {
				continue
			}
			kinds[i] = Unify(kinds[i], row[i].Kind)
		}
	}

	d := Descriptor{Columns: make([]Column, len(columns))}
	for i, name := range columns {
		d.Columns[i] = Column{Name: name, Kind: kinds[i]}
	}
	return d
}
