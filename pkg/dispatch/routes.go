package dispatch

// Task identifiers with dedicated candidate lists.
const (
	TaskIntentParse      = "intent-parse"
	TaskIntentVerify     = "intent-verify"
	TaskCodegen          = "codegen"
	TaskCodegenRepair    = "codegen-repair"
	TaskTerraformCodegen = "terraform-codegen"
)

// Routes maps a task to its ordered, de-duplicated backend candidate list.
// Built once at startup; immutable thereafter.
type Routes map[string][]string

// RouteInputs holds the configured backend lists the routes are built from.
// Alternate-profile prefixes are empty unless the active profile enables
// them.
type RouteInputs struct {
	IntentPrefix   []string
	IntentPrimary  string
	IntentFallback []string
	DefaultBackend string

	VerifierPrefix   []string
	VerifierPrimary  string
	VerifierFallback []string

	CodegenPrefix   []string
	CodegenPrimary  string
	CodegenFallback []string
	CodegenDefault  string
}

// BuildRoutes assembles the per-task candidate lists. The verifier list
// falls back to the intent primary when no verifier primary is configured,
// and appends the full intent list as a final tier. The repair and
// terraform tasks share the codegen list.
func BuildRoutes(in RouteInputs) Routes {
	verifierPrimary := in.VerifierPrimary
	if verifierPrimary == "" {
		verifierPrimary = in.IntentPrimary
	}

	intent := Candidates(in.IntentPrefix, in.IntentPrimary, in.IntentFallback, in.DefaultBackend)
	codegen := Candidates(in.CodegenPrefix, in.CodegenPrimary, in.CodegenFallback, in.CodegenDefault)
	verifier := Candidates(in.VerifierPrefix, verifierPrimary, in.VerifierFallback, "")
	verifier = dedupeKeepOrder(append(verifier, intent...))

	return Routes{
		TaskIntentParse:      intent,
		TaskIntentVerify:     verifier,
		TaskCodegen:          codegen,
		TaskCodegenRepair:    codegen,
		TaskTerraformCodegen: codegen,
	}
}

// For returns the candidate list for a task. Unknown tasks use the
// intent-parse list.
func (r Routes) For(task string) []string {
	if backends, ok := r[task]; ok && len(backends) > 0 {
		return backends
	}
	return r[TaskIntentParse]
}

// Candidates builds one candidate list: prefix, then primary, then
// fallbacks, then the task default, de-duplicated keeping the first
// occurrence. Empty entries are skipped.
func Candidates(prefix []string, primary string, fallbacks []string, dflt string) []string {
	combined := make([]string, 0, len(prefix)+len(fallbacks)+2)
	combined = append(combined, prefix...)
	combined = append(combined, primary)
	combined = append(combined, fallbacks...)
	combined = append(combined, dflt)
	return dedupeKeepOrder(combined)
}

func dedupeKeepOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
