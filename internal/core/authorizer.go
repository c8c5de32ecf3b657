package core

import "context"

// Principal identifies the workload on whose behalf an authorization check
// runs. No credential material is attached; identity is already established
// by the verified attestation token.
type Principal struct {
	Domain  string `json:"domain"`
	Service string `json:"service"`
}

// FullName returns the dotted service identity, e.g. "sports.api".
func (p Principal) FullName() string {
	return p.Domain + "." + p.Service
}

// Authorizer is the external policy decision point. Implementations:
// rule engine, webhook, static allow-all.
type Authorizer interface {
	// Access reports whether the principal may perform the action on the
	// resource. An error means the decision could not be made and is
	// treated as a denial by callers.
	Access(ctx context.Context, action, resource string, principal Principal) (bool, error)
}
