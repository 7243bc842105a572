package verbs

import (
	"fmt"
	"strings"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// Args is a verb's bound argument set: positional plan arguments matched to
// parameter names, merged with keyword arguments. Values carry JSON types
// (string, float64, bool, []any, map[string]any, nil).
type Args map[string]any

// String extracts a required non-empty string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &waapi.ValidationError{Message: fmt.Sprintf("expected string, got %T", v), Field: key}
	}
	if strings.TrimSpace(s) == "" {
		return "", &waapi.ValidationError{Message: "must be non-empty", Field: key}
	}
	return s, nil
}

// OptString extracts an optional string argument, returning def when absent
// or empty.
func (a Args) OptString(key, def string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &waapi.ValidationError{Message: fmt.Sprintf("expected string, got %T", v), Field: key}
	}
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return s, nil
}

// StringSlice extracts a required non-empty list of non-empty strings.
func (a Args) StringSlice(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	out, err := toStringSlice(v)
	if err != nil {
		return nil, &waapi.ValidationError{Message: err.Error(), Field: key}
	}
	if len(out) == 0 {
		return nil, &waapi.ValidationError{Message: "list must be non-empty", Field: key}
	}
	for i, s := range out {
		if strings.TrimSpace(s) == "" {
			return nil, &waapi.ValidationError{
				Message: fmt.Sprintf("element at index %d must be non-empty", i),
				Field:   key,
			}
		}
	}
	return out, nil
}

// OptStringSlice extracts an optional string list; nil when absent.
func (a Args) OptStringSlice(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	out, err := toStringSlice(v)
	if err != nil {
		return nil, &waapi.ValidationError{Message: err.Error(), Field: key}
	}
	return out, nil
}

// FloatSlice extracts a required list of numbers.
func (a Args) FloatSlice(key string) ([]float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &waapi.ValidationError{Message: fmt.Sprintf("expected list, got %T", v), Field: key}
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, &waapi.ValidationError{
				Message: fmt.Sprintf("element at index %d: %v", i, err),
				Field:   key,
			}
		}
		out[i] = f
	}
	return out, nil
}

// Float extracts a required numeric argument.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, &waapi.ValidationError{Message: err.Error(), Field: key}
	}
	return f, nil
}

// OptFloat extracts an optional numeric argument.
func (a Args) OptFloat(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, &waapi.ValidationError{Message: err.Error(), Field: key}
	}
	return f, nil
}

// Int extracts a required integer argument.
func (a Args) Int(key string) (int, error) {
	f, err := a.Float(key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// OptInt extracts an optional integer argument.
func (a Args) OptInt(key string, def int) (int, error) {
	f, err := a.OptFloat(key, float64(def))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// OptBool extracts an optional boolean argument.
func (a Args) OptBool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &waapi.ValidationError{Message: fmt.Sprintf("expected bool, got %T", v), Field: key}
	}
	return b, nil
}

// Vec3 extracts a required 3-element position.
func (a Args) Vec3(key string) ([3]float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return [3]float64{}, &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	return toVec3(v, key)
}

// Vec3Slice extracts a required list of 3-element positions.
func (a Args) Vec3Slice(key string) ([][3]float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, &waapi.ValidationError{Message: "missing required argument", Field: key}
	}
	items, ok := v.([]any)
	if !ok {
		return nil, &waapi.ValidationError{Message: fmt.Sprintf("expected list, got %T", v), Field: key}
	}
	out := make([][3]float64, len(items))
	for i, item := range items {
		vec, err := toVec3(item, fmt.Sprintf("%s[%d]", key, i))
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// MapSlice extracts an optional list of objects (e.g. prior WAAPI responses
// passed through $last). Nil when absent.
func (a Args) MapSlice(key string) ([]map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []map[string]any:
		return t, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, &waapi.ValidationError{
					Message: fmt.Sprintf("element at index %d: expected object, got %T", i, item),
					Field:   key,
				}
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, &waapi.ValidationError{Message: fmt.Sprintf("expected list of objects, got %T", v), Field: key}
	}
}

// Value returns a raw argument.
func (a Args) Value(key string) (any, bool) {
	v, ok := a[key]
	return v, ok
}

func toStringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element at index %d: expected string, got %T", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toVec3(v any, field string) ([3]float64, error) {
	items, ok := v.([]any)
	if !ok {
		return [3]float64{}, &waapi.ValidationError{
			Message: fmt.Sprintf("expected [x, y, z], got %T", v),
			Field:   field,
		}
	}
	if len(items) != 3 {
		return [3]float64{}, &waapi.ValidationError{
			Message: fmt.Sprintf("expected 3 coordinates, got %d", len(items)),
			Field:   field,
		}
	}
	var vec [3]float64
	for i, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return [3]float64{}, &waapi.ValidationError{
				Message: fmt.Sprintf("coordinate %d: %v", i, err),
				Field:   field,
			}
		}
		vec[i] = f
	}
	return vec, nil
}

// asMap coerces a WAAPI response to a map, returning nil otherwise.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// returnList extracts the "return" array of a WAAPI object.get response.
func returnList(v any) []map[string]any {
	m := asMap(v)
	if m == nil {
		return nil
	}
	items, _ := m["return"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
