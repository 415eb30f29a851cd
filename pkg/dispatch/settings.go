package dispatch

import "github.com/zen-systems/infragate/pkg/config"

// RoutesFromSettings builds the per-task candidate lists from loaded
// settings. Alternate-profile prefixes apply only when the active profile
// enables them.
func RoutesFromSettings(s config.Settings) Routes {
	in := RouteInputs{
		IntentPrimary:    s.IntentPrimary,
		IntentFallback:   config.SplitCSV(s.IntentFallbacks),
		DefaultBackend:   s.DefaultBackend,
		VerifierPrimary:  s.VerifierPrimary,
		VerifierFallback: config.SplitCSV(s.VerifierFallbacks),
		CodegenPrimary:   s.CodegenPrimary,
		CodegenFallback:  config.SplitCSV(s.CodegenFallbacks),
		CodegenDefault:   s.CodegenDefault,
	}
	if s.AlternateEnabled() {
		in.IntentPrefix = config.SplitCSV(s.AltIntentBackends)
		in.VerifierPrefix = config.SplitCSV(s.AltVerifierBackends)
		in.CodegenPrefix = config.SplitCSV(s.AltCodegenBackends)
	}
	return BuildRoutes(in)
}
