package remedy

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Intent is the parsed infrastructure change request a failed execution
// originated from.
type Intent struct {
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceName string         `json:"resource_name"`
	Region       string         `json:"region"`
	Parameters   map[string]any `json:"parameters"`
}

// Context carries request-scoped values for plan templating.
type Context struct {
	Environment string
	Region      string
}

// Step is one concrete executable step after template substitution.
type Step struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Plan is the corrective action plan derived from a matched rule. It is
// created per failure and consumed once; persistence is the caller's
// concern.
type Plan struct {
	RunID               string        `json:"run_id"`
	RuleID              string        `json:"rule_id"`
	ResourceType        string        `json:"resource_type"`
	Action              string        `json:"action"`
	Reason              string        `json:"reason"`
	HumanActions        []string      `json:"human_actions"`
	RequiredPermissions []string      `json:"required_permissions"`
	ApprovalScope       string        `json:"approval_scope"`
	Steps               []Step        `json:"steps"`
	RetryStrategy       RetryStrategy `json:"retry_strategy"`
	Safety              Safety        `json:"safety"`
	ErrorExcerpt        string        `json:"error_excerpt"`

	// Required tells orchestrating callers the original request cannot
	// proceed without this plan being applied or a human stepping in.
	Required bool `json:"required"`
}

// Engine matches failures against the rule set and builds/executes plans.
type Engine struct {
	rules       *RuleSet
	defaults    Defaults
	enabled     bool
	previewOnly bool
	log         zerolog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineSettings)

type engineSettings struct {
	enabled     bool
	previewOnly bool
	maxAttempts int
	log         zerolog.Logger
}

// WithEnabled toggles remediation globally.
func WithEnabled(enabled bool) EngineOption {
	return func(s *engineSettings) { s.enabled = enabled }
}

// WithPreviewOnly permits plan construction but forbids plan execution.
func WithPreviewOnly(preview bool) EngineOption {
	return func(s *engineSettings) { s.previewOnly = preview }
}

// WithMaxAttempts bounds the default retry strategy. Values below 1 are
// raised to 1.
func WithMaxAttempts(attempts int) EngineOption {
	return func(s *engineSettings) {
		if attempts < 1 {
			attempts = 1
		}
		s.maxAttempts = attempts
	}
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(s *engineSettings) { s.log = log }
}

// NewEngine creates an engine over a loaded rule set. File-level defaults
// overlay the built-in defaults.
func NewEngine(rules *RuleSet, opts ...EngineOption) *Engine {
	settings := engineSettings{
		enabled:     true,
		maxAttempts: 2,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&settings)
	}

	base := Defaults{
		ApprovalScope: "request_run",
		RetryStrategy: RetryStrategy{
			Mode:           "wait_then_retry",
			MaxAttempts:    settings.maxAttempts,
			BackoffSeconds: []int{15, 30, 60},
		},
	}
	if rules == nil {
		rules = NewRuleSet(nil)
	}

	return &Engine{
		rules:       rules,
		defaults:    rules.mergeDefaults(base),
		enabled:     settings.enabled,
		previewOnly: settings.previewOnly,
		log:         settings.log,
	}
}

// BuildPlan matches a failed execution against the rule set and returns a
// templated plan, or nil when remediation does not apply: the engine is
// disabled, the execution succeeded, no recoverable error text exists, the
// intent is missing its action or resource type, or no rule matches.
func (e *Engine) BuildPlan(intent Intent, executionResult map[string]any, rctx Context) *Plan {
	if !e.enabled || executionResult == nil {
		return nil
	}
	if success, ok := executionResult["success"].(bool); ok && success {
		return nil
	}

	errs := CollectErrors(executionResult)
	if len(errs) == 0 {
		return nil
	}
	errorText := strings.ToLower(strings.Join(errs, " | "))

	action := strings.ToLower(strings.TrimSpace(intent.Action))
	resourceType := strings.ToLower(strings.TrimSpace(intent.ResourceType))
	if action == "" || resourceType == "" {
		return nil
	}

	var selected *Rule
	for i := range e.rules.All() {
		rule := &e.rules.All()[i]
		if matchesRule(rule, resourceType, action, errorText) {
			selected = rule
			break
		}
	}
	if selected == nil {
		e.log.Debug().Str("action", action).Str("resource_type", resourceType).
			Msg("no remediation rule matched")
		return nil
	}

	values := templateContext(intent, executionResult, rctx)

	steps := make([]Step, 0, len(selected.Actions))
	for _, tmpl := range selected.Actions {
		params, _ := renderValue(tmpl.Params, values).(map[string]any)
		steps = append(steps, Step{Type: tmpl.Type, Params: params})
	}

	approval := selected.ApprovalMessageTemplate
	if approval == "" {
		approval = "I can apply automatic remediation and retry."
	}

	plan := &Plan{
		RunID:               "rem-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		RuleID:              selected.ID,
		ResourceType:        resourceType,
		Action:              action,
		Reason:              renderString(approval, values),
		HumanActions:        append([]string(nil), selected.HumanActions...),
		RequiredPermissions: append([]string(nil), selected.RequiredPermissions...),
		ApprovalScope:       e.defaults.ApprovalScope,
		Steps:               steps,
		RetryStrategy:       overlayRetry(e.defaults.RetryStrategy, selected.RetryStrategy),
		Safety:              overlaySafety(e.defaults.Safety, selected.Safety),
		ErrorExcerpt:        errs[0],
		Required:            true,
	}

	e.log.Info().Str("rule", selected.ID).Str("run_id", plan.RunID).
		Int("steps", len(plan.Steps)).Msg("remediation plan built")
	return plan
}

// matchesRule checks one rule against the intent and collected error text.
// Resource and action matchers are wildcards or case-insensitive equality.
// The error matcher sets are OR-combined; malformed regex patterns are
// treated as non-matching.
func matchesRule(rule *Rule, resourceType, action, errorText string) bool {
	ruleResource := strings.ToLower(strings.TrimSpace(rule.ResourceType))
	if ruleResource == "" {
		ruleResource = "*"
	}
	ruleAction := strings.ToLower(strings.TrimSpace(rule.Action))
	if ruleAction == "" {
		ruleAction = "*"
	}
	if ruleResource != "*" && ruleResource != resourceType {
		return false
	}
	if ruleAction != "*" && ruleAction != action {
		return false
	}

	containsMatched := false
	for _, token := range rule.ErrorMatch.ContainsAny {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" && strings.Contains(errorText, token) {
			containsMatched = true
			break
		}
	}
	regexMatched := false
	for _, pattern := range rule.ErrorMatch.RegexAny {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(errorText) {
			regexMatched = true
			break
		}
	}

	return containsMatched || regexMatched
}

// templateContext builds the flat substitution context. Execution-result
// identifiers win over intent parameters, which win over the resource
// name.
func templateContext(intent Intent, executionResult map[string]any, rctx Context) map[string]any {
	params := intent.Parameters
	if params == nil {
		params = map[string]any{}
	}

	environment := rctx.Environment
	if environment == "" {
		environment = "dev"
	}
	region := intent.Region
	if region == "" {
		region = rctx.Region
	}

	values := map[string]any{
		"environment":   environment,
		"region":        region,
		"resource_type": intent.ResourceType,
		"action":        intent.Action,
		"resource_name": intent.ResourceName,
		"instance_id": firstNonEmpty(
			stringValue(executionResult["instance_id"]),
			stringValue(params["instance_id"]),
			intent.ResourceName,
		),
		"bastion_instance_id": firstNonEmpty(
			stringValue(executionResult["bastion_instance_id"]),
			stringValue(params["bastion_instance_id"]),
		),
		"db_instance_id": firstNonEmpty(
			stringValue(executionResult["db_instance_id"]),
			stringValue(params["db_instance_id"]),
			intent.ResourceName,
		),
	}
	for key, value := range params {
		if _, ok := values[key]; !ok {
			values[key] = value
		}
	}
	return values
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
