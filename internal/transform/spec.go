package transform

import (
	"fmt"
)

// Transform names the per-column value conversion applied after path
// resolution. The empty string means natural typing: strings stay
// strings, JSON numbers become integers or floats, booleans stay
// booleans, nested containers are serialized to JSON text.
const (
	TransformCurrency      = "currency"
	TransformDate          = "date"
	TransformTimestamp     = "timestamp"
	TransformInteger       = "integer"
	TransformFloat         = "float"
	TransformBoolean       = "boolean"
	TransformHeight        = "height"
	TransformShirtNumber   = "shirt_number"
	TransformMinutes       = "minutes"
	TransformDays          = "days"
	TransformGoalsScored   = "goals_scored"
	TransformGoalsConceded = "goals_conceded"
)

// Multi is the declared policy for a column whose path yields a list.
//
//	""        the value must be scalar; a list is serialized to JSON text
//	"columns" the list spreads across numbered columns name_1..name_N,
//	          N being the widest list observed in the batch
//	"join"    the list collapses into one delimited string cell
//
// Spreading a list across extra rows is a whole-record policy and is
// declared on Spec.Expand, not per column.
type Multi string

const (
	MultiNone    Multi = ""
	MultiColumns Multi = "columns"
	MultiJoin    Multi = "join"
)

// Column declares one output column: where its value comes from, how it
// is converted, and how list values are handled. Name is normalized
// before it reaches the output header or the catalog.
type Column struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Transform string `json:"transform,omitempty"`
	Multi     Multi  `json:"multi,omitempty"`
}

// Expand declares the one-to-many policy for a category: Path addresses
// a list inside each record, and every list element becomes one output
// row carrying the parent columns alongside the element columns.
// Records whose list is empty or missing still produce a single row
// with the element columns null.
type Expand struct {
	Path    string   `json:"path"`
	Columns []Column `json:"columns"`
}

// Spec is the full declarative mapping for one category. Column order is
// output order; it never changes at run time.
type Spec struct {
	Category string   `json:"category"`
	Columns  []Column `json:"columns"`
	Expand   *Expand  `json:"expand,omitempty"`
}

var knownTransforms = map[string]bool{
	"":                     true,
	TransformCurrency:      true,
	TransformDate:          true,
	TransformTimestamp:     true,
	TransformInteger:       true,
	TransformFloat:         true,
	TransformBoolean:       true,
	TransformHeight:        true,
	TransformShirtNumber:   true,
	TransformMinutes:       true,
	TransformDays:          true,
	TransformGoalsScored:   true,
	TransformGoalsConceded: true,
}

// Validate returns a list of human-readable problems with the spec.
// An empty list means the spec is usable.
func (s Spec) Validate() []string {
	var issues []string
	if s.Category == "" {
		issues = append(issues, "category is empty")
	}
	if len(s.Columns) == 0 {
		issues = append(issues, "no columns declared")
	}

	seen := map[string]string{}
	checkColumn := func(where string, c Column) {
		name := NormalizeColumn(c.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("%s column %q normalizes to an empty name", where, c.Name))
		} else if prev, dup := seen[name]; dup {
			issues = append(issues, fmt.Sprintf("%s column %q collides with %q after normalization", where, c.Name, prev))
		} else {
			seen[name] = c.Name
		}
		if _, err := ParsePath(c.Path); err != nil {
			issues = append(issues, fmt.Sprintf("%s column %q: %v", where, c.Name, err))
		}
		if !knownTransforms[c.Transform] {
			issues = append(issues, fmt.Sprintf("%s column %q: unknown transform %q", where, c.Name, c.Transform))
		}
		switch c.Multi {
		case MultiNone, MultiColumns, MultiJoin:
		default:
			issues = append(issues, fmt.Sprintf("%s column %q: unknown multi policy %q", where, c.Name, c.Multi))
		}
		if c.Multi == MultiJoin && c.Transform != "" {
			issues = append(issues, fmt.Sprintf("%s column %q: multi=join cannot be combined with a transform", where, c.Name))
		}
	}

	for _, c := range s.Columns {
		checkColumn("declared", c)
	}
	if s.Expand != nil {
		if _, err := ParsePath(s.Expand.Path); err != nil {
			issues = append(issues, fmt.Sprintf("expand: %v", err))
		}
		if len(s.Expand.Columns) == 0 {
			issues = append(issues, "expand declares no columns")
		}
		for _, c := range s.Expand.Columns {
			if c.Multi == MultiColumns {
				issues = append(issues, fmt.Sprintf("expand column %q: multi=columns is not supported inside expand", c.Name))
			}
			checkColumn("expand", c)
		}
	}
	return issues
}
