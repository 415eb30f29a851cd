// Package action declares the capability consumed by remediation plans: a
// fixed set of named idempotent cloud operations. Implementations live
// outside this core; the package ships a recording fake for tests.
package action

import (
	"context"
	"time"
)

// StepResult is the outcome of one capability operation.
type StepResult struct {
	Success bool           `json:"success"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ServiceRoleRequest describes an EnsureServiceRole invocation.
type ServiceRoleRequest struct {
	ServiceSlug      string
	ServicePrincipal string
	PolicyARNs       []string
	Environment      string
	RoleName         string
	Tags             map[string]string
}

// NetworkAssociationRequest describes an EnsureNetworkAssociation
// invocation.
type NetworkAssociationRequest struct {
	ServiceName      string
	ResourceID       string
	SubnetIDs        []string
	SecurityGroupIDs []string
}

// Capability is the set of idempotent corrective operations a remediation
// plan may invoke. Each operation enforces its own timeouts and returns a
// StepResult rather than failing the whole run on a remote error; a
// non-nil error means the operation could not be attempted at all.
type Capability interface {
	EnsurePrerequisitesForInstance(ctx context.Context, instanceID, environment, roleModel string, wait time.Duration) (StepResult, error)
	EnsureManagedInstanceProfile(ctx context.Context, environment, roleModel string) (StepResult, error)
	AttachInstanceProfile(ctx context.Context, instanceID, profileName string) (StepResult, error)
	WaitForRegistration(ctx context.Context, instanceID string, timeout time.Duration) (StepResult, error)
	EnsureServiceLinkedRole(ctx context.Context, serviceName string) (StepResult, error)
	EnsureClusterRole(ctx context.Context, environment, clusterName string, tags map[string]string) (StepResult, error)
	EnsureServiceRole(ctx context.Context, req ServiceRoleRequest) (StepResult, error)
	EnsurePolicyAttached(ctx context.Context, roleName, policyARN string) (StepResult, error)
	EnsureSecurityGroupIngress(ctx context.Context, groupID string, port int, protocol, cidr string) (StepResult, error)
	EnsureBucketCompliance(ctx context.Context, bucketName string, allowPublic bool) (StepResult, error)
	EnsureNetworkAssociation(ctx context.Context, req NetworkAssociationRequest) (StepResult, error)
}
