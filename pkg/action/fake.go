package action

import (
	"context"
	"sync"
	"time"
)

// FakeCall records one capability invocation.
type FakeCall struct {
	Op     string
	Params map[string]any
}

// Fake is an in-memory Capability that records invocations and returns
// scripted results per operation name. Unscripted operations succeed.
type Fake struct {
	mu      sync.Mutex
	results map[string]StepResult
	errs    map[string]error
	calls   []FakeCall
}

// NewFake creates a recording fake capability.
func NewFake() *Fake {
	return &Fake{
		results: make(map[string]StepResult),
		errs:    make(map[string]error),
	}
}

// SetResult scripts the result for an operation name.
func (f *Fake) SetResult(op string, result StepResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[op] = result
}

// SetError scripts a hard failure for an operation name.
func (f *Fake) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

// Calls returns the recorded invocations in order.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) record(op string, params map[string]any) (StepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Op: op, Params: params})
	if err, ok := f.errs[op]; ok {
		return StepResult{}, err
	}
	if result, ok := f.results[op]; ok {
		return result, nil
	}
	return StepResult{Success: true}, nil
}

func (f *Fake) EnsurePrerequisitesForInstance(_ context.Context, instanceID, environment, roleModel string, wait time.Duration) (StepResult, error) {
	return f.record("ensure_prerequisites_for_instance", map[string]any{
		"instance_id": instanceID, "environment": environment, "role_model": roleModel, "wait": wait,
	})
}

func (f *Fake) EnsureManagedInstanceProfile(_ context.Context, environment, roleModel string) (StepResult, error) {
	return f.record("ensure_managed_instance_profile", map[string]any{
		"environment": environment, "role_model": roleModel,
	})
}

func (f *Fake) AttachInstanceProfile(_ context.Context, instanceID, profileName string) (StepResult, error) {
	return f.record("attach_instance_profile", map[string]any{
		"instance_id": instanceID, "profile_name": profileName,
	})
}

func (f *Fake) WaitForRegistration(_ context.Context, instanceID string, timeout time.Duration) (StepResult, error) {
	return f.record("wait_for_registration", map[string]any{
		"instance_id": instanceID, "timeout": timeout,
	})
}

func (f *Fake) EnsureServiceLinkedRole(_ context.Context, serviceName string) (StepResult, error) {
	return f.record("ensure_service_linked_role", map[string]any{"service_name": serviceName})
}

func (f *Fake) EnsureClusterRole(_ context.Context, environment, clusterName string, tags map[string]string) (StepResult, error) {
	return f.record("ensure_cluster_role", map[string]any{
		"environment": environment, "cluster_name": clusterName, "tags": tags,
	})
}

func (f *Fake) EnsureServiceRole(_ context.Context, req ServiceRoleRequest) (StepResult, error) {
	return f.record("ensure_service_role", map[string]any{
		"service_slug": req.ServiceSlug, "service_principal": req.ServicePrincipal,
		"policy_arns": req.PolicyARNs, "environment": req.Environment, "role_name": req.RoleName,
	})
}

func (f *Fake) EnsurePolicyAttached(_ context.Context, roleName, policyARN string) (StepResult, error) {
	return f.record("ensure_policy_attached", map[string]any{
		"role_name": roleName, "policy_arn": policyARN,
	})
}

func (f *Fake) EnsureSecurityGroupIngress(_ context.Context, groupID string, port int, protocol, cidr string) (StepResult, error) {
	return f.record("ensure_security_group_ingress", map[string]any{
		"group_id": groupID, "port": port, "protocol": protocol, "cidr": cidr,
	})
}

func (f *Fake) EnsureBucketCompliance(_ context.Context, bucketName string, allowPublic bool) (StepResult, error) {
	return f.record("ensure_bucket_compliance", map[string]any{
		"bucket_name": bucketName, "allow_public": allowPublic,
	})
}

func (f *Fake) EnsureNetworkAssociation(_ context.Context, req NetworkAssociationRequest) (StepResult, error) {
	return f.record("ensure_network_association", map[string]any{
		"service_name": req.ServiceName, "resource_id": req.ResourceID,
		"subnet_ids": req.SubnetIDs, "security_group_ids": req.SecurityGroupIDs,
	})
}
