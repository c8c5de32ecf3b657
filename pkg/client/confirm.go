package client

import (
	"context"

	"github.com/ctyano/athenz-auth-core/internal/api"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// ConfirmInstance submits an instance confirmation request and returns the
// approved confirmation with its certificate attributes.
func (c *Client) ConfirmInstance(
	ctx context.Context,
	confirmation *core.InstanceConfirmation,
) (*core.InstanceConfirmation, string, error) {
	var result core.InstanceConfirmation
	correlation, err := c.post(ctx, c.url().
		setPath(api.ConfirmInstanceRoute).
		build(), confirmation, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}

// RefreshInstance submits a certificate refresh request.
func (c *Client) RefreshInstance(
	ctx context.Context,
	confirmation *core.InstanceConfirmation,
) (*core.InstanceConfirmation, string, error) {
	var result core.InstanceConfirmation
	correlation, err := c.post(ctx, c.url().
		setPath(api.RefreshInstanceRoute).
		build(), confirmation, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}
