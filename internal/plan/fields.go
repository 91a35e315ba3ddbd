package plan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// lookup returns the value of the first key present with a non-null value.
func lookup(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// textOf returns the first key whose value renders as non-empty text.
func textOf(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := scalarText(obj[k]); ok {
			return s, true
		}
	}
	return "", false
}

// scalarText renders strings, numbers and booleans. Numbers keep their
// literal form when decoded with UseNumber.
func scalarText(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	return s, s != ""
}

// freeText renders a field the agent may send as text, a list of strings,
// or a nested object.
func freeText(v any) (string, bool) {
	if s, ok := scalarText(v); ok {
		return s, true
	}
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := freeText(item); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "; "), true
	case map[string]any:
		if len(t) == 0 {
			return "", false
		}
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}

// number reads a numeric field sent either as a number or a numeric string.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
