package transform

import (
	"fmt"
	"strconv"
	"strings"

	"footstats/pkg/records"
)

// Path is a compiled path expression addressing one value inside a decoded
// JSON document. The textual form is dotted segments ("club.name",
// "marketValue.value"); a segment that parses as a number indexes into an
// array ("squad.0.id"). The special form "." resolves to the document
// itself, which row-expansion specs use for arrays of scalars.
//
// Resolution has exactly one failure mode: any missing segment, wrong
// container shape, out-of-range index, or JSON null yields (nil, false).
type Path struct {
	raw  string
	segs []string
}

// ParsePath compiles a dotted path expression.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, fmt.Errorf("path is empty")
	}
	if s == "." {
		return Path{raw: "."}, nil
	}
	segs := strings.Split(s, ".")
	for _, seg := range segs {
		if seg == "" {
			return Path{}, fmt.Errorf("path %q has an empty segment", s)
		}
	}
	return Path{raw: s, segs: segs}, nil
}

// MustPath compiles a path expression and panics on error. Reserved for
// statically declared specs where a bad path is a programmer error.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(fmt.Sprintf("transform: %v", err))
	}
	return p
}

func (p Path) String() string { return p.raw }

// IsZero reports whether the path was never parsed.
func (p Path) IsZero() bool { return p.raw == "" }

// Resolve walks the document and returns the addressed value.
// ok=false means "missing": the caller maps it to the null sentinel.
func (p Path) Resolve(doc any) (any, bool) {
	if p.raw == "." {
		return doc, doc != nil
	}

	cur := doc
	for _, seg := range p.segs {
		switch c := cur.(type) {
		case records.Raw:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			cur = c[idx]
		default:
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}
