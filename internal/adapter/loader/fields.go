package loader

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type record map[string]any

// str returns the first non-empty field among keys, rendered as text.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s := render(v); s != "" {
			return s
		}
	}
	return ""
}

func (r record) list(keys ...string) []any {
	for _, k := range keys {
		if v, ok := r[k].([]any); ok {
			return v
		}
	}
	return nil
}

func render(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// records converts a decoded JSON list into its object items, dropping anything else.
func records(items []any) []record {
	out := make([]record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, record(m))
		}
	}
	return out
}

func decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return v, nil
}
