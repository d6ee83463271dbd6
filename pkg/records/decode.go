package records

import (
	"encoding/json"
	"fmt"
	"io"
)

// DecodeRaw reads one JSON object. Numbers are kept as json.Number so
// integer identity survives until typing happens downstream.
func DecodeRaw(r io.Reader) (Raw, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out Raw
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

// DecodeRawList reads a top-level JSON array of objects.
func DecodeRawList(r io.Reader) ([]Raw, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out []Raw
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode record list: %w", err)
	}
	return out, nil
}
