package authz

import (
	"context"
	"fmt"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// ActionLaunchJob is the fixed action identifier checked for this workload
// class.
const ActionLaunchJob = "jenkins.job"

// Gate turns a validated token subject into an authorization decision via
// the configured policy collaborator.
type Gate struct {
	authorizer core.Authorizer
}

func NewGate(authorizer core.Authorizer) *Gate {
	return &Gate{authorizer: authorizer}
}

// Authorize checks whether the workload identity may launch jobs under the
// given subject. The resource is the raw, unescaped token subject prefixed
// with the domain; the subject is typically a job URL and is deliberately
// not normalized, since escaping it would change the policy contract.
func (g *Gate) Authorize(ctx context.Context, domain, service, subject string) error {
	resource := domain + ":" + subject
	principal := core.Principal{Domain: domain, Service: service}

	ok, err := g.authorizer.Access(ctx, ActionLaunchJob, resource, principal)
	if err != nil {
		return fmt.Errorf("authorization check failed for action: %s resource: %s: %w", ActionLaunchJob, resource, err)
	}
	if !ok {
		return fmt.Errorf("authorization check failed for action: %s resource: %s", ActionLaunchJob, resource)
	}
	return nil
}
