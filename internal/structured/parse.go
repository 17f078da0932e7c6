// Package structured turns free-form model output into typed values. Every
// entry point tries a strict JSON decode first and falls back to a single
// repair pass; output that still does not parse is ErrMalformedOutput.
package structured

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	perrors "github.com/F-O-T/contentagen-nx-sub000/internal/pkg/errors"
)

// Decode parses raw as JSON, repairing it once if needed.
func Decode(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err == nil {
		return v, nil
	}
	repaired := Repair(raw)
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrMalformedOutput, err)
	}
	return v, nil
}

// ParseArray returns the objects of a JSON array. A lone object becomes a
// one-element array. Non-object elements are skipped.
func ParseArray(raw string) ([]map[string]any, error) {
	v, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, el := range t {
			if m, ok := el.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	case map[string]any:
		return []map[string]any{t}, nil
	default:
		return nil, fmt.Errorf("%w: expected array or object, got %T", perrors.ErrMalformedOutput, v)
	}
}

// ParseArrayField is ParseArray for models that wrap the list in an object,
// e.g. {"ideas":[...]}. When the named key holds an array it is used;
// otherwise the decoded value is treated as ParseArray would.
func ParseArrayField(raw, key string) ([]map[string]any, error) {
	items, err := ParseArray(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		if inner, ok := items[0][key].([]any); ok {
			out := make([]map[string]any, 0, len(inner))
			for _, el := range inner {
				if m, ok := el.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out, nil
		}
	}
	return items, nil
}

// ParseObject returns a JSON object, taking the first element when the model
// answered with an array.
func ParseObject(raw string) (map[string]any, error) {
	items, err := ParseArray(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no object in output", perrors.ErrMalformedOutput)
	}
	return items[0], nil
}

// String reads a string-ish field, trimming whitespace. Numbers are formatted.
func String(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// StringList accepts an array of strings or a comma-separated string.
// Blank and duplicate entries are dropped; order is kept.
func StringList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = t
	case string:
		parts = strings.Split(t, ",")
	}
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return out
}
