package remedy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zen-systems/infragate/pkg/action"
)

// AuthContext carries caller identity details steps may fall back to.
type AuthContext struct {
	Environment string
}

// StepOutcome records one executed step.
type StepOutcome struct {
	Type    string            `json:"type"`
	Success bool              `json:"success"`
	Result  action.StepResult `json:"result"`
}

// ExecOutcome is the result of executing a plan. RequiresManual and
// PreviewOnly are explicit non-error refusals.
type ExecOutcome struct {
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	RequiresManual bool          `json:"requires_manual,omitempty"`
	PreviewOnly    bool          `json:"preview_only,omitempty"`
	Steps          []StepOutcome `json:"steps,omitempty"`
}

// ExecutePlan runs a plan's steps strictly in order against the action
// capability. Execution is refused, with no side effects, when remediation
// is disabled, the plan has no executable steps, or preview-only mode is
// configured. The first failing step stops the run and returns the
// completed step outcomes alongside the error.
func (e *Engine) ExecutePlan(ctx context.Context, plan *Plan, capability action.Capability, auth AuthContext) *ExecOutcome {
	if !e.enabled {
		return &ExecOutcome{Error: "auto-remediation is disabled"}
	}
	if plan == nil {
		return &ExecOutcome{Error: "invalid remediation plan"}
	}
	if len(plan.Steps) == 0 {
		return &ExecOutcome{
			RequiresManual: true,
			Error:          "no executable auto-remediation steps are defined for this issue",
		}
	}
	if e.previewOnly {
		return &ExecOutcome{
			PreviewOnly: true,
			Error:       "auto-remediation preview mode is enabled; execution is blocked",
		}
	}

	outcome := &ExecOutcome{}
	for _, step := range plan.Steps {
		stepType := strings.TrimSpace(step.Type)
		if stepType == "" {
			continue
		}

		result, err := e.runStep(ctx, stepType, step.Params, capability, auth)
		if err != nil {
			outcome.Error = err.Error()
			e.log.Warn().Str("run_id", plan.RunID).Str("step", stepType).
				Err(err).Msg("remediation step errored")
			return outcome
		}

		outcome.Steps = append(outcome.Steps, StepOutcome{
			Type:    stepType,
			Success: result.Success,
			Result:  result,
		})
		if !result.Success {
			outcome.Error = result.Error
			if outcome.Error == "" {
				outcome.Error = fmt.Sprintf("remediation step %q failed", stepType)
			}
			e.log.Warn().Str("run_id", plan.RunID).Str("step", stepType).
				Str("error", outcome.Error).Msg("remediation step failed")
			return outcome
		}
	}

	outcome.Success = true
	e.log.Info().Str("run_id", plan.RunID).Int("steps", len(outcome.Steps)).
		Msg("remediation plan executed")
	return outcome
}

// runStep maps a step type to exactly one capability operation with a
// fixed, validated parameter shape. An unrecognized type halts the run.
func (e *Engine) runStep(ctx context.Context, stepType string, params map[string]any, capability action.Capability, auth AuthContext) (action.StepResult, error) {
	environment := strParam(params, "environment")
	if environment == "" {
		environment = auth.Environment
	}
	if environment == "" {
		environment = "dev"
	}

	switch stepType {
	case "ensure_prerequisites_for_instance":
		instanceID := strParam(params, "instance_id")
		if instanceID == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires instance_id", stepType)
		}
		roleModel := strParam(params, "role_model")
		if roleModel == "" {
			roleModel = "shared"
		}
		wait := durationParam(params, "wait_seconds", 300*time.Second)
		return capability.EnsurePrerequisitesForInstance(ctx, instanceID, environment, roleModel, wait)

	case "ensure_managed_instance_profile":
		roleModel := strParam(params, "role_model")
		if roleModel == "" {
			roleModel = "shared"
		}
		return capability.EnsureManagedInstanceProfile(ctx, environment, roleModel)

	case "attach_instance_profile":
		instanceID := strParam(params, "instance_id")
		profileName := strParam(params, "profile_name")
		if instanceID == "" || profileName == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires instance_id and profile_name", stepType)
		}
		return capability.AttachInstanceProfile(ctx, instanceID, profileName)

	case "wait_for_registration":
		instanceID := strParam(params, "instance_id")
		if instanceID == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires instance_id", stepType)
		}
		timeout := durationParam(params, "timeout_seconds", 300*time.Second)
		return capability.WaitForRegistration(ctx, instanceID, timeout)

	case "ensure_service_linked_role":
		serviceName := strParam(params, "service_name")
		if serviceName == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires service_name", stepType)
		}
		return capability.EnsureServiceLinkedRole(ctx, serviceName)

	case "ensure_cluster_role":
		return capability.EnsureClusterRole(ctx, environment, strParam(params, "cluster_name"), tagsParam(params, "tags"))

	case "ensure_service_role":
		req := action.ServiceRoleRequest{
			ServiceSlug:      strParam(params, "service_slug"),
			ServicePrincipal: strParam(params, "service_principal"),
			PolicyARNs:       strSliceParam(params, "policy_arns"),
			Environment:      environment,
			RoleName:         strParam(params, "role_name"),
			Tags:             tagsParam(params, "tags"),
		}
		if req.ServiceSlug == "" || req.ServicePrincipal == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires service_slug and service_principal", stepType)
		}
		return capability.EnsureServiceRole(ctx, req)

	case "ensure_policy_attached":
		roleName := strParam(params, "role_name")
		policyARN := strParam(params, "policy_arn")
		if roleName == "" || policyARN == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires role_name and policy_arn", stepType)
		}
		return capability.EnsurePolicyAttached(ctx, roleName, policyARN)

	case "ensure_security_group_ingress":
		groupID := strParam(params, "group_id")
		port := intParam(params, "port")
		if groupID == "" || port <= 0 {
			return action.StepResult{}, fmt.Errorf("step %q requires group_id and port", stepType)
		}
		protocol := strParam(params, "protocol")
		if protocol == "" {
			protocol = "tcp"
		}
		cidr := strParam(params, "cidr")
		if cidr == "" {
			cidr = "0.0.0.0/0"
		}
		return capability.EnsureSecurityGroupIngress(ctx, groupID, port, protocol, cidr)

	case "ensure_bucket_compliance":
		bucketName := strParam(params, "bucket_name")
		if bucketName == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires bucket_name", stepType)
		}
		return capability.EnsureBucketCompliance(ctx, bucketName, boolParam(params, "allow_public"))

	case "ensure_network_association":
		req := action.NetworkAssociationRequest{
			ServiceName:      strParam(params, "service_name"),
			ResourceID:       strParam(params, "resource_id"),
			SubnetIDs:        strSliceParam(params, "subnet_ids"),
			SecurityGroupIDs: strSliceParam(params, "security_group_ids"),
		}
		if req.ServiceName == "" || req.ResourceID == "" {
			return action.StepResult{}, fmt.Errorf("step %q requires service_name and resource_id", stepType)
		}
		return capability.EnsureNetworkAssociation(ctx, req)
	}

	return action.StepResult{}, fmt.Errorf("unsupported remediation action %q", stepType)
}

func strParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intParam(params map[string]any, key string) int {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func boolParam(params map[string]any, key string) bool {
	if params == nil {
		return false
	}
	b, _ := params[key].(bool)
	return b
}

func durationParam(params map[string]any, key string, dflt time.Duration) time.Duration {
	if n := intParam(params, key); n > 0 {
		return time.Duration(n) * time.Second
	}
	return dflt
}

func strSliceParam(params map[string]any, key string) []string {
	if params == nil {
		return nil
	}
	raw, ok := params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func tagsParam(params map[string]any, key string) map[string]string {
	if params == nil {
		return nil
	}
	raw, ok := params[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
