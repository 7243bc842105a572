package plan

import (
	"strings"

	"github.com/wwise-tools/wwise-mcp/pkg/waapi"
)

// resolveValue substitutes $variable references against the plan's store.
// A reference is a string "$name" or "$name.field"; lists and dicts are
// resolved recursively so references can appear inside literals.
func resolveValue(v any, store map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		if !strings.HasPrefix(t, "$") {
			return t, nil
		}
		return resolveRef(t, store)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := resolveValue(item, store)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			resolved, err := resolveValue(item, store)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveRef(ref string, store map[string]any) (any, error) {
	name := strings.TrimPrefix(ref, "$")
	field := ""
	if dot := strings.Index(name, "."); dot >= 0 {
		field = name[dot+1:]
		name = name[:dot]
	}

	value, ok := store[name]
	if !ok {
		return nil, waapi.NewValidationError("unknown plan variable %q", ref)
	}
	if field == "" {
		return value, nil
	}
	return extractField(ref, value, field)
}

// extractField projects a field out of a stored result. For a list of
// objects it returns the field from each element, skipping elements that
// lack it.
func extractField(ref string, value any, field string) (any, error) {
	switch t := value.(type) {
	case map[string]any:
		v, ok := t[field]
		if !ok {
			return nil, waapi.NewValidationError("variable %q has no field %q", ref, field)
		}
		return v, nil
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if v, ok := item[field]; ok {
				out = append(out, v)
			}
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := m[field]; ok {
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, waapi.NewValidationError(
			"variable %q does not support field access (.%s on %T)", ref, field, value)
	}
}
