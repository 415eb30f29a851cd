package remedy

import "strings"

// CollectErrors recursively walks a generic value tree (as produced by
// JSON/YAML decoding) and gathers every non-empty string found under an
// "error" key. Map iteration order is not guaranteed, so callers must not
// depend on the relative order of errors from sibling branches; the walk
// visits the local "error" value before descending.
func CollectErrors(payload any) []string {
	var out []string
	collectErrors(payload, &out)
	return out
}

func collectErrors(payload any, out *[]string) {
	switch v := payload.(type) {
	case map[string]any:
		if err, ok := v["error"].(string); ok {
			if trimmed := strings.TrimSpace(err); trimmed != "" {
				*out = append(*out, trimmed)
			}
		}
		for key, child := range v {
			if key == "error" {
				continue
			}
			collectErrors(child, out)
		}
	case []any:
		for _, item := range v {
			collectErrors(item, out)
		}
	}
}
