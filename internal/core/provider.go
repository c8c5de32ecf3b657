package core

import "context"

// Provider validates instance confirmation requests for one attestation
// scheme and shapes the approved certificate attributes.
// Implementations: Jenkins OIDC provider.
type Provider interface {
	// Name returns the identifier of this provider (as used in config).
	Name() string

	// ConfirmInstance validates the request's attestation token and SAN
	// values and returns the confirmation with the approved certificate
	// attributes set. Any failure is returned as a *ForbiddenError.
	ConfirmInstance(ctx context.Context, confirmation *InstanceConfirmation) (*InstanceConfirmation, error)

	// RefreshInstance handles certificate refresh requests. Providers that
	// issue non-renewable certificates always reject.
	RefreshInstance(ctx context.Context, confirmation *InstanceConfirmation) (*InstanceConfirmation, error)

	// SetAuthorizer wires the authorization collaborator. ConfirmInstance
	// rejects until an authorizer is set.
	SetAuthorizer(authorizer Authorizer)
}
