package dispatch

import (
	"encoding/json"
	"regexp"
	"strings"
)

// QualityScorer derives a quality estimate in [0, 1] from a successful
// response. The heuristics are approximate and task-specific; they are
// pluggable per task so thresholds stay tuning choices.
type QualityScorer func(text string) float64

var structureMarkers = regexp.MustCompile(`[{}\[\]:]`)

// codeSignals are tokens whose presence suggests the response actually
// contains infrastructure code rather than prose.
var codeSignals = []string{
	"import boto3",
	"boto3.client(",
	"def ",
	"try:",
	"except ",
	"terraform",
	"resource ",
	"provider ",
}

// StructuredScore returns 1.0 when the text parses as a JSON object or
// array after stripping code fences and slicing the outermost braces,
// else a fixed partial score.
func StructuredScore(text string) float64 {
	if parsesAsJSON(text) {
		return 1.0
	}
	return 0.35
}

// CodeScore increases with the number of code signal tokens present.
func CodeScore(text string) float64 {
	lowered := strings.ToLower(text)
	hits := 0
	for _, token := range codeSignals {
		if strings.Contains(lowered, token) {
			hits++
		}
	}
	score := 0.45 + 0.08*float64(hits)
	if score > 1.0 {
		return 1.0
	}
	return score
}

// FreeformScore blends length and punctuation-density signals.
func FreeformScore(text string) float64 {
	lengthScore := float64(len(text)) / 180.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}
	structureBonus := 0.0
	if structureMarkers.MatchString(text) {
		structureBonus = 0.2
	}
	score := 0.35 + 0.45*lengthScore + structureBonus
	if score > 1.0 {
		return 1.0
	}
	return score
}

func defaultScorers() map[string]QualityScorer {
	return map[string]QualityScorer{
		TaskIntentParse:      StructuredScore,
		TaskIntentVerify:     StructuredScore,
		TaskCodegen:          CodeScore,
		TaskCodegenRepair:    CodeScore,
		TaskTerraformCodegen: CodeScore,
	}
}

func parsesAsJSON(text string) bool {
	cleaned := StripFences(text)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return false
	}
	switch parsed.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// StripFences removes surrounding markdown code-fence markup, preferring a
// language-tagged fence when present.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	for _, tag := range []string{"```json", "```hcl", "```terraform"} {
		if idx := strings.Index(cleaned, tag); idx >= 0 {
			rest := cleaned[idx+len(tag):]
			if end := strings.Index(rest, "```"); end >= 0 {
				return strings.TrimSpace(rest[:end])
			}
			return strings.TrimSpace(rest)
		}
	}
	if idx := strings.Index(cleaned, "```"); idx >= 0 {
		rest := cleaned[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return cleaned
}
