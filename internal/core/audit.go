package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "instance.confirm", "instance.refresh")
	Action string `json:"action"`

	// Provider that handled the request
	Provider string `json:"provider,omitempty"`

	// Identity details of the request
	Domain     string `json:"domain,omitempty"`
	Service    string `json:"service,omitempty"`
	InstanceID string `json:"instance_id,omitempty"`

	// Subject is the verified token subject, when validation got that far
	Subject string `json:"subject,omitempty"`

	// Decision details
	Approved bool   `json:"approved"`
	Error    string `json:"error,omitempty"`

	// Attributes are the approved certificate attributes
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
