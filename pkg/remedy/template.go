package remedy

import (
	"fmt"
	"regexp"
)

// placeholder matches named {key} placeholders. The syntax is closed: no
// expressions, no nesting, no formatting verbs.
var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// renderValue substitutes placeholders in string templates against a flat
// key->value context. Maps and sequences recurse; every other value passes
// through structurally. Unresolved placeholders are left verbatim.
func renderValue(template any, values map[string]any) any {
	switch v := template.(type) {
	case string:
		return renderString(v, values)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = renderValue(child, values)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = renderValue(item, values)
		}
		return out
	default:
		return template
	}
}

func renderString(template string, values map[string]any) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := values[key]
		if !ok || value == nil {
			return match
		}
		return fmt.Sprintf("%v", value)
	})
}
