package core

// Attribute keys carried on an instance confirmation request.
// These mirror the attribute names used by the certificate-issuing host.
const (
	AttrInstanceID = "instanceId"
	AttrSanDNS     = "sanDNS"
	AttrSanIP      = "sanIP"
	AttrSanURI     = "sanURI"
	AttrHostname   = "hostname"
)

// Attribute keys set on an approved confirmation response.
const (
	AttrCertRefresh    = "certRefresh"
	AttrCertUsage      = "certUsage"
	AttrCertExpiryTime = "certExpiryTime"
)

// CertUsageClient marks certificates usable for client authentication only.
const CertUsageClient = "client"

// InstanceConfirmation is a request to approve certificate issuance for a
// workload. The attestation data is the OIDC ID token presented by the
// workload as proof of identity.
type InstanceConfirmation struct {
	// Provider is the registered provider scheme handling this request.
	Provider string `json:"provider"`

	// Domain and Service identify the workload requesting a certificate.
	Domain  string `json:"domain"`
	Service string `json:"service"`

	// AttestationData is the raw attestation token (a signed OIDC ID token).
	AttestationData string `json:"attestationData"`

	// Attributes carries the certificate request details (SAN values,
	// instance id). On success the provider replaces it with the approved
	// certificate attributes.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attribute returns the named attribute or "" when absent.
func (c *InstanceConfirmation) Attribute(key string) string {
	if c.Attributes == nil {
		return ""
	}
	return c.Attributes[key]
}
