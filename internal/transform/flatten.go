package transform

import "footstats/pkg/records"

// Flatten walks a decoded record and collects every leaf value under
// its dotted path. Nested objects extend the path; arrays stay whole as
// leaf values so the caller can decide between a row expansion and a
// column spread. The probe command uses this to propose specs from
// sample payloads.
func Flatten(rec records.Raw) map[string]any {
	out := make(map[string]any, len(rec))
	flattenInto("", map[string]any(rec), out)
	return out
}

func flattenInto(prefix string, obj map[string]any, out map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch c := v.(type) {
		case map[string]any:
			flattenInto(key, c, out)
		case records.Raw:
			flattenInto(key, map[string]any(c), out)
		default:
			out[key] = v
		}
	}
}
