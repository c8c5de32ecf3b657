package policy

import (
	"testing"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

func TestValidateSanURI(t *testing.T) {
	tests := []struct {
		name   string
		sanURI string
		want   bool
	}{
		{
			name:   "empty is valid",
			sanURI: "",
			want:   true,
		},
		{
			name:   "spiffe uri",
			sanURI: "spiffe://athenz/sa/api",
			want:   true,
		},
		{
			name:   "instance id uri",
			sanURI: "athenz://instanceid/sys.auth.jenkins/id-001",
			want:   true,
		},
		{
			name:   "spiffe and instance id combined",
			sanURI: "spiffe://athenz/sa/api,athenz://instanceid/sys.auth.jenkins/id-001",
			want:   true,
		},
		{
			name:   "https uri rejected",
			sanURI: "https://athenz.io",
			want:   false,
		},
		{
			name:   "valid uri mixed with unsupported uri rejected",
			sanURI: "spiffe://athenz/sa/api,https://athenz.io",
			want:   false,
		},
		{
			name:   "prefix only counts as valid",
			sanURI: "spiffe://",
			want:   true,
		},
		{
			name:   "bare hostname rejected",
			sanURI: "athenz.io",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateSanURI(tt.sanURI); got != tt.want {
				t.Errorf("ValidateSanURI(%q) = %v, want %v", tt.sanURI, got, tt.want)
			}
		})
	}
}

func TestCheckPreConditions(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		wantErr    string
	}{
		{
			name:       "no attributes",
			attributes: nil,
		},
		{
			name: "uri identity only",
			attributes: map[string]string{
				core.AttrSanURI: "spiffe://athenz/sa/api",
			},
		},
		{
			name: "sanIP rejected",
			attributes: map[string]string{
				core.AttrSanIP: "10.1.2.3",
			},
			wantErr: "Request must not have any sanIP addresses",
		},
		{
			name: "hostname rejected",
			attributes: map[string]string{
				core.AttrHostname: "host1.athenz.cloud",
			},
			wantErr: "Request must not have any sanDNS values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmation := &core.InstanceConfirmation{
				Domain:     "sports",
				Service:    "api",
				Attributes: tt.attributes,
			}
			err := CheckPreConditions(confirmation)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("CheckPreConditions() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("CheckPreConditions() expected error %q, got none", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("CheckPreConditions() error = %q, want %q", err.Error(), tt.wantErr)
			}
			if !core.IsForbidden(err) {
				t.Errorf("CheckPreConditions() error is not forbidden")
			}
		})
	}
}
