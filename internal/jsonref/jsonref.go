// Package jsonref rewrites identifier references inside JSON documents.
package jsonref

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Replace returns raw with every JSON string value equal to oldID replaced
// by newID. Object keys are left alone. The bool reports whether anything
// changed; when it is false raw is returned untouched.
func Replace(raw json.RawMessage, oldID, newID string) (json.RawMessage, bool, error) {
	if len(raw) == 0 || oldID == "" || !bytes.Contains(raw, []byte(oldID)) {
		return raw, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return raw, false, fmt.Errorf("failed to decode document: %w", err)
	}

	doc, changed := walk(doc, oldID, newID)
	if !changed {
		return raw, false, nil
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return raw, false, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, true, nil
}

func walk(v any, oldID, newID string) (any, bool) {
	switch t := v.(type) {
	case string:
		if t == oldID {
			return newID, true
		}
		return t, false
	case map[string]any:
		changed := false
		for k, child := range t {
			nv, c := walk(child, oldID, newID)
			if c {
				t[k] = nv
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			nv, c := walk(child, oldID, newID)
			if c {
				t[i] = nv
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}
