package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// encodePages renders pages as an indented JSON object keyed by page number.
// Keys are written in numeric order so the file diffs cleanly.
func encodePages(p Pages) ([]byte, error) {
	var buf bytes.Buffer
	nums := p.Numbers()
	if len(nums) == 0 {
		return []byte("{}\n"), nil
	}

	buf.WriteString("{\n")
	for i, n := range nums {
		records := p[n]
		if records == nil {
			records = []StatusRecord{}
		}
		body, err := json.MarshalIndent(records, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", n, err)
		}
		fmt.Fprintf(&buf, "  %q: %s", strconv.Itoa(n), body)
		if i < len(nums)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// decodePages parses a store document. Invalid JSON is reported as
// [ErrCorrupt]; well-formed JSON of the wrong shape as [ErrShapeMismatch].
// Empty input decodes to empty pages.
func decodePages(data []byte) (Pages, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Pages{}, nil
	}
	if !json.Valid(data) {
		return nil, ErrCorrupt
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: top-level value must be an object of pages", ErrShapeMismatch)
	}

	pages := make(Pages, len(raw))
	for key, value := range raw {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || strconv.Itoa(n) != key {
			return nil, fmt.Errorf("%w: page key %q is not a canonical positive integer", ErrShapeMismatch, key)
		}

		dec := json.NewDecoder(bytes.NewReader(value))
		dec.DisallowUnknownFields()
		var records []StatusRecord
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrShapeMismatch, n, err)
		}
		pages[n] = records
	}
	return pages, nil
}
