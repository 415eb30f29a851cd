// Package remedy matches failed executions against declarative rules and
// produces corrective action plans with bounded, preview-gated execution.
package remedy

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RetryStrategy tells the caller how to retry the original action after
// remediation.
type RetryStrategy struct {
	Mode           string `yaml:"mode" json:"mode"`
	MaxAttempts    int    `yaml:"max_attempts" json:"max_attempts"`
	BackoffSeconds []int  `yaml:"backoff_seconds" json:"backoff_seconds"`
}

// Safety flags a plan's blast radius.
type Safety struct {
	Destructive   bool `yaml:"destructive" json:"destructive"`
	RequiresAdmin bool `yaml:"requires_admin" json:"requires_admin"`
}

// Defaults are engine-wide settings a rule may override.
type Defaults struct {
	ApprovalScope string
	RetryStrategy RetryStrategy
	Safety        Safety
}

// ErrorMatch selects failures by error text. The substring and regex sets
// are OR-combined; a rule with neither configured never matches.
type ErrorMatch struct {
	ContainsAny []string `yaml:"contains_any"`
	RegexAny    []string `yaml:"regex_any"`
}

// StepTemplate is one templated executable step of a rule.
type StepTemplate struct {
	Type   string         `yaml:"type" validate:"required"`
	Params map[string]any `yaml:"params"`
}

// retryOverride overlays only the fields a rule sets.
type retryOverride struct {
	Mode           string `yaml:"mode"`
	MaxAttempts    int    `yaml:"max_attempts"`
	BackoffSeconds []int  `yaml:"backoff_seconds"`
}

// safetyOverride overlays only the fields a rule sets.
type safetyOverride struct {
	Destructive   *bool `yaml:"destructive"`
	RequiresAdmin *bool `yaml:"requires_admin"`
}

// Rule is one declarative remediation rule. Rules are immutable after load
// and evaluated first-match-wins in file order.
type Rule struct {
	ID                      string          `yaml:"id" validate:"required"`
	ResourceType            string          `yaml:"resource_type"`
	Action                  string          `yaml:"action"`
	ErrorMatch              ErrorMatch      `yaml:"error_match"`
	Actions                 []StepTemplate  `yaml:"actions" validate:"dive"`
	HumanActions            []string        `yaml:"human_actions"`
	RequiredPermissions     []string        `yaml:"required_permissions"`
	RetryStrategy           *retryOverride  `yaml:"retry_strategy"`
	Safety                  *safetyOverride `yaml:"safety"`
	ApprovalMessageTemplate string          `yaml:"approval_message_template"`
}

// fileDefaults mirrors the optional defaults object of the rule-set file.
type fileDefaults struct {
	ApprovalScope string          `yaml:"approval_scope"`
	RetryStrategy *retryOverride  `yaml:"retry_strategy"`
	Safety        *safetyOverride `yaml:"safety"`
}

type ruleFile struct {
	Defaults fileDefaults `yaml:"defaults"`
	Rules    []Rule       `yaml:"rules" validate:"dive"`
}

// RuleSet holds the loaded rules plus the file-level default overrides.
type RuleSet struct {
	rules        []Rule
	fileDefaults fileDefaults
}

// NewRuleSet builds a rule set from in-memory rules (used by tests and
// embedded defaults).
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// All returns the rules in file order.
func (rs *RuleSet) All() []Rule {
	return rs.rules
}

// LoadRuleSet reads and validates a YAML rule-set file.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}

	return &RuleSet{rules: file.Rules, fileDefaults: file.Defaults}, nil
}

// mergeDefaults overlays the file-level defaults on the engine's base
// defaults.
func (rs *RuleSet) mergeDefaults(base Defaults) Defaults {
	merged := base
	if rs.fileDefaults.ApprovalScope != "" {
		merged.ApprovalScope = rs.fileDefaults.ApprovalScope
	}
	merged.RetryStrategy = overlayRetry(merged.RetryStrategy, rs.fileDefaults.RetryStrategy)
	merged.Safety = overlaySafety(merged.Safety, rs.fileDefaults.Safety)
	return merged
}

func overlayRetry(base RetryStrategy, over *retryOverride) RetryStrategy {
	if over == nil {
		return base
	}
	if over.Mode != "" {
		base.Mode = over.Mode
	}
	if over.MaxAttempts > 0 {
		base.MaxAttempts = over.MaxAttempts
	}
	if len(over.BackoffSeconds) > 0 {
		base.BackoffSeconds = append([]int(nil), over.BackoffSeconds...)
	}
	return base
}

func overlaySafety(base Safety, over *safetyOverride) Safety {
	if over == nil {
		return base
	}
	if over.Destructive != nil {
		base.Destructive = *over.Destructive
	}
	if over.RequiresAdmin != nil {
		base.RequiresAdmin = *over.RequiresAdmin
	}
	return base
}
