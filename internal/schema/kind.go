// Package schema infers column types from transformed batches and
// reconciles them against a catalog, additively only.
//
// The type lattice is small: integer widens to float, everything widens
// to string, and boolean, date and timestamp only ever widen to string.
// Two columns never merge and a catalog type is never narrowed.
package schema

import "footstats/pkg/records"

// Unify returns the most general kind covering both inputs. The empty
// kind is the identity so all-null columns stay undecided until
// reconciliation.
func Unify(a, b records.Kind) records.Kind {
	switch {
	case a == b:
		return a
	case a == "":
		return b
	case b == "":
		return a
	case a == records.KindInteger && b == records.KindFloat,
		a == records.KindFloat && b == records.KindInteger:
		return records.KindFloat
	default:
		return records.KindString
	}
}

// Widens reports whether a column of kind from may become kind to
// without losing values already in the catalog.
func Widens(from, to records.Kind) bool {
	if from == to {
		return true
	}
	if to == records.KindString {
		return true
	}
	return from == records.KindInteger && to == records.KindFloat
}

// CatalogType maps a kind to the catalog's type vocabulary.
func CatalogType(k records.Kind) string {
	switch k {
	case records.KindInteger:
		return "bigint"
	case records.KindFloat:
		return "double"
	case records.KindBoolean:
		return "boolean"
	case records.KindDate:
		return "date"
	case records.KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// KindFromCatalogType maps a catalog type back into the lattice.
// ok=false marks types we do not manage (structs, maps, decimals with
// precision); reconciliation leaves those columns alone.
func KindFromCatalogType(t string) (records.Kind, bool) {
	switch t {
	case "tinyint", "smallint", "int", "integer", "bigint":
		return records.KindInteger, true
	case "float", "double":
		return records.KindFloat, true
	case "boolean":
		return records.KindBoolean, true
	case "date":
		return records.KindDate, true
	case "timestamp":
		return records.KindTimestamp, true
	case "string", "varchar":
		return records.KindString, true
	default:
		return "", false
	}
}
