package identity

import (
	"context"
	"fmt"

	"github.com/gatepass/gatepass/internal/core"
)

// DefaultAgent is used when a caller does not name its agent.
const DefaultAgent = "default"

var _ core.IdentityResolver = (*RoleResolver)(nil)

// RoleResolver derives a workload identity from the caller's execution role
// and agent name. The agent name is what makes the identity finer-grained
// than the role: two agents under the same role get distinct identities.
type RoleResolver struct{}

func NewRoleResolver() *RoleResolver {
	return &RoleResolver{}
}

func (r *RoleResolver) Resolve(_ context.Context, executionRole, agent string) (core.WorkloadIdentity, error) {
	if executionRole == "" {
		return core.WorkloadIdentity{}, fmt.Errorf("execution role is required to resolve a workload identity")
	}
	if agent == "" {
		agent = DefaultAgent
	}
	return core.WorkloadIdentity{
		Ref:           executionRole + "#workload/" + agent,
		ExecutionRole: executionRole,
	}, nil
}
