// Package config loads the routing and remediation configuration from a
// YAML file with environment variables taking precedence, following the
// same precedence rules as the rest of the deployment tooling.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings is the flat configuration surface for the dispatch,
// remediation and provisioning cores.
type Settings struct {
	// Routing profile. "balanced" uses configured order; "alternate"
	// prepends the alternate-profile backends; "auto" and
	// "alternate-auto" additionally enable adaptive ranking.
	Profile      string  `yaml:"profile"`
	EnableScorer bool    `yaml:"enable_scorer"`
	Exploration  float64 `yaml:"exploration"`

	QualityWeight float64 `yaml:"quality_weight"`
	LatencyWeight float64 `yaml:"latency_weight"`
	FailureWeight float64 `yaml:"failure_weight"`
	EMAAlpha      float64 `yaml:"ema_alpha"`

	DefaultAdapter string `yaml:"default_adapter"`
	DefaultBackend string `yaml:"default_backend"`

	IntentPrimary     string `yaml:"intent_primary"`
	IntentFallbacks   string `yaml:"intent_fallbacks"`
	VerifierPrimary   string `yaml:"verifier_primary"`
	VerifierFallbacks string `yaml:"verifier_fallbacks"`
	CodegenPrimary    string `yaml:"codegen_primary"`
	CodegenFallbacks  string `yaml:"codegen_fallbacks"`
	CodegenDefault    string `yaml:"codegen_default"`

	AltIntentBackends   string `yaml:"alt_intent_backends"`
	AltVerifierBackends string `yaml:"alt_verifier_backends"`
	AltCodegenBackends  string `yaml:"alt_codegen_backends"`

	RulesPath           string `yaml:"rules_path"`
	RemediationEnabled  bool   `yaml:"remediation_enabled"`
	RemediationPreview  bool   `yaml:"remediation_preview"`
	RemediationAttempts int    `yaml:"remediation_attempts"`

	SourceRoot  string `yaml:"source_root"`
	WorkRoot    string `yaml:"work_root"`
	ActiveDir   string `yaml:"active_dir"`
	Parallelism int    `yaml:"parallelism"`

	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GoogleAPIKey    string `yaml:"-"`
}

// Defaults returns the baseline settings before file and environment
// overrides.
func Defaults() Settings {
	return Settings{
		Profile:             "balanced",
		EnableScorer:        true,
		Exploration:         0.15,
		QualityWeight:       0.65,
		LatencyWeight:       0.35,
		FailureWeight:       0.50,
		EMAAlpha:            0.35,
		DefaultAdapter:      "anthropic",
		DefaultBackend:      "anthropic/claude-sonnet-4-20250514",
		IntentPrimary:       "anthropic/claude-sonnet-4-20250514",
		IntentFallbacks:     "openai/gpt-5.2-instant,google/gemini-2.0-pro",
		CodegenPrimary:      "anthropic/claude-sonnet-4-20250514",
		CodegenFallbacks:    "openai/gpt-5.2-codex",
		CodegenDefault:      "anthropic/claude-sonnet-4-20250514",
		RemediationEnabled:  true,
		RemediationAttempts: 2,
		WorkRoot:            "/tmp/infragate",
		ActiveDir:           "aws",
		Parallelism:         20,
	}
}

// Load reads settings from an optional YAML file, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Settings, error) {
	settings := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return settings, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &settings); err != nil {
				return settings, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&settings)
	return settings, nil
}

func applyEnv(s *Settings) {
	envStr("INFRAGATE_PROFILE", &s.Profile)
	envBool("INFRAGATE_ENABLE_SCORER", &s.EnableScorer)
	envFloat("INFRAGATE_EXPLORATION", &s.Exploration)
	envFloat("INFRAGATE_QUALITY_WEIGHT", &s.QualityWeight)
	envFloat("INFRAGATE_LATENCY_WEIGHT", &s.LatencyWeight)
	envFloat("INFRAGATE_FAILURE_WEIGHT", &s.FailureWeight)
	envFloat("INFRAGATE_EMA_ALPHA", &s.EMAAlpha)
	envStr("INFRAGATE_DEFAULT_ADAPTER", &s.DefaultAdapter)
	envStr("INFRAGATE_DEFAULT_BACKEND", &s.DefaultBackend)
	envStr("INFRAGATE_INTENT_PRIMARY", &s.IntentPrimary)
	envStr("INFRAGATE_INTENT_FALLBACKS", &s.IntentFallbacks)
	envStr("INFRAGATE_VERIFIER_PRIMARY", &s.VerifierPrimary)
	envStr("INFRAGATE_VERIFIER_FALLBACKS", &s.VerifierFallbacks)
	envStr("INFRAGATE_CODEGEN_PRIMARY", &s.CodegenPrimary)
	envStr("INFRAGATE_CODEGEN_FALLBACKS", &s.CodegenFallbacks)
	envStr("INFRAGATE_CODEGEN_DEFAULT", &s.CodegenDefault)
	envStr("INFRAGATE_ALT_INTENT_BACKENDS", &s.AltIntentBackends)
	envStr("INFRAGATE_ALT_VERIFIER_BACKENDS", &s.AltVerifierBackends)
	envStr("INFRAGATE_ALT_CODEGEN_BACKENDS", &s.AltCodegenBackends)
	envStr("INFRAGATE_RULES_PATH", &s.RulesPath)
	envBool("INFRAGATE_REMEDIATION_ENABLED", &s.RemediationEnabled)
	envBool("INFRAGATE_REMEDIATION_PREVIEW", &s.RemediationPreview)
	envInt("INFRAGATE_REMEDIATION_ATTEMPTS", &s.RemediationAttempts)
	envStr("INFRAGATE_SOURCE_ROOT", &s.SourceRoot)
	envStr("INFRAGATE_WORK_ROOT", &s.WorkRoot)
	envStr("INFRAGATE_ACTIVE_DIR", &s.ActiveDir)
	envInt("INFRAGATE_PARALLELISM", &s.Parallelism)
	envStr("ANTHROPIC_API_KEY", &s.AnthropicAPIKey)
	envStr("OPENAI_API_KEY", &s.OpenAIAPIKey)
	envStr("GOOGLE_API_KEY", &s.GoogleAPIKey)
}

// AdaptiveEnabled reports whether the active profile uses stats-based
// ranking.
func (s Settings) AdaptiveEnabled() bool {
	if !s.EnableScorer {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s.Profile)) {
	case "auto", "alternate-auto":
		return true
	default:
		return false
	}
}

// AlternateEnabled reports whether alternate-profile backend prefixes
// apply.
func (s Settings) AlternateEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(s.Profile)) {
	case "alternate", "alternate-auto", "auto":
		return true
	default:
		return false
	}
}

// SplitCSV splits a comma-separated backend list, trimming whitespace and
// dropping empty items.
func SplitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envStr(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envBool(key string, target *bool) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func envInt(key string, target *int) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func envFloat(key string, target *float64) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}
