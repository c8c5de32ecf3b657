package policy

import (
	"testing"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

func TestValidateCertRequestSanDNSNames(t *testing.T) {
	suffixes := []string{"jenkins.athenz.io"}

	tests := []struct {
		name           string
		domain         string
		service        string
		sanDNS         string
		instanceID     string
		dnsSuffixes    []string
		wantInstanceID string
		wantOK         bool
	}{
		{
			name:           "empty sanDNS is valid",
			domain:         "sports",
			service:        "api",
			instanceID:     "id-001",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:           "service hostname",
			domain:         "sports",
			service:        "api",
			sanDNS:         "api.sports.jenkins.athenz.io",
			instanceID:     "id-001",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:           "subdomain uses dashed domain",
			domain:         "sports.prod",
			service:        "api",
			sanDNS:         "api.sports-prod.jenkins.athenz.io",
			instanceID:     "id-001",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:           "instance id hostname matches attribute",
			domain:         "sports",
			service:        "api",
			sanDNS:         "id-001.instanceid.athenz.jenkins.athenz.io",
			instanceID:     "id-001",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:           "instance id extracted from hostname when attribute missing",
			domain:         "sports",
			service:        "api",
			sanDNS:         "id-001.instanceid.athenz.jenkins.athenz.io",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:           "service and instance id hostnames combined",
			domain:         "sports",
			service:        "api",
			sanDNS:         "api.sports.jenkins.athenz.io,id-001.instanceid.athenz.jenkins.athenz.io",
			instanceID:     "id-001",
			wantInstanceID: "id-001",
			wantOK:         true,
		},
		{
			name:       "instance id hostname disagrees with attribute",
			domain:     "sports",
			service:    "api",
			sanDNS:     "id-002.instanceid.athenz.jenkins.athenz.io",
			instanceID: "id-001",
			wantOK:     false,
		},
		{
			name:       "unknown suffix rejected",
			domain:     "sports",
			service:    "api",
			sanDNS:     "api.sports.other.athenz.io",
			instanceID: "id-001",
			wantOK:     false,
		},
		{
			name:       "wrong service rejected",
			domain:     "sports",
			service:    "api",
			sanDNS:     "backend.sports.jenkins.athenz.io",
			instanceID: "id-001",
			wantOK:     false,
		},
		{
			name:    "no instance id anywhere",
			domain:  "sports",
			service: "api",
			sanDNS:  "api.sports.jenkins.athenz.io",
			wantOK:  false,
		},
		{
			name:       "multi-label instance id rejected",
			domain:     "sports",
			service:    "api",
			sanDNS:     "a.b.instanceid.athenz.jenkins.athenz.io",
			instanceID: "a.b",
			wantOK:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attributes := map[string]string{}
			if tt.sanDNS != "" {
				attributes[core.AttrSanDNS] = tt.sanDNS
			}
			if tt.instanceID != "" {
				attributes[core.AttrInstanceID] = tt.instanceID
			}

			confirmation := &core.InstanceConfirmation{
				Domain:     tt.domain,
				Service:    tt.service,
				Attributes: attributes,
			}

			sfx := tt.dnsSuffixes
			if sfx == nil {
				sfx = suffixes
			}

			gotID, gotOK := ValidateCertRequestSanDNSNames(confirmation, sfx)
			if gotOK != tt.wantOK {
				t.Fatalf("ValidateCertRequestSanDNSNames() ok = %v, want %v", gotOK, tt.wantOK)
			}
			if tt.wantOK && gotID != tt.wantInstanceID {
				t.Errorf("ValidateCertRequestSanDNSNames() instance id = %q, want %q", gotID, tt.wantInstanceID)
			}
		})
	}
}
