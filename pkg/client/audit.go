package client

import (
	"context"

	"github.com/ctyano/athenz-auth-core/internal/api"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	Domain        string
	InstanceID    string
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.Domain != "" {
		ub = ub.addQueryParam("domain", opts.Domain)
	}
	if opts.InstanceID != "" {
		ub = ub.addQueryParam("instance_id", opts.InstanceID)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
