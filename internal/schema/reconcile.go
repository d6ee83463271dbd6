package schema

import "footstats/pkg/records"

// ChangeKind says whether a reconciliation change creates a column or
// widens an existing one.
type ChangeKind string

const (
	ChangeAdd   ChangeKind = "add"
	ChangeWiden ChangeKind = "widen"
)

// Change is one catalog mutation the sync step should apply.
type Change struct {
	Column   string
	FromType string
	ToType   string
	Kind     ChangeKind
}

// Conflict is a proposed narrowing or an unmanaged-type collision. It
// is reported, logged and otherwise ignored: the catalog keeps its
// current type.
type Conflict struct {
	Column       string
	CatalogType  string
	InferredType string
}

// Reconcile compares an inferred descriptor against the catalog's
// current columns and returns the additive changes plus any rejected
// narrowings. Catalog columns absent from the descriptor are never
// touched, so columns only ever accumulate.
//
// An all-null column defers to the catalog when the column exists and
// lands as string when it does not.
func Reconcile(d Descriptor, existing map[string]string) ([]Change, []Conflict) {
	var changes []Change
	var conflicts []Conflict

	for _, c := range d.Columns {
		current, present := existing[c.Name]
		if !present {
			kind := c.Kind
			if kind == "" {
				kind = records.KindString
			}
			changes = append(changes, Change{Column: c.Name, ToType: CatalogType(kind), Kind: ChangeAdd})
			continue
		}
		if c.Kind == "" {
			continue
		}

		currentKind, managed := KindFromCatalogType(current)
		if !managed {
			if CatalogType(c.Kind) != current {
				conflicts = append(conflicts, Conflict{Column: c.Name, CatalogType: current, InferredType: CatalogType(c.Kind)})
			}
			continue
		}
		if currentKind == c.Kind {
			continue
		}
		if Widens(currentKind, c.Kind) {
			changes = append(changes, Change{Column: c.Name, FromType: current, ToType: CatalogType(c.Kind), Kind: ChangeWiden})
			continue
		}
		conflicts = append(conflicts, Conflict{Column: c.Name, CatalogType: current, InferredType: CatalogType(c.Kind)})
	}
	return changes, conflicts
}
