package policy

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// SAN URI schemes a request may carry: a SPIFFE identity and the
// provider-assigned instance id.
const (
	URISPIFFEPrefix     = "spiffe://"
	URIInstanceIDPrefix = "athenz://instanceid/"
)

// CheckPreConditions rejects request shapes this workload class can never
// have. CI jobs have URI/DNS identity only, so any sanIP or hostname value
// is an immediate reject, evaluated before the token is even parsed.
func CheckPreConditions(confirmation *core.InstanceConfirmation) error {
	if confirmation.Attribute(core.AttrSanIP) != "" {
		return core.Forbidden("Request must not have any sanIP addresses")
	}
	if confirmation.Attribute(core.AttrHostname) != "" {
		return core.Forbidden("Request must not have any sanDNS values")
	}
	return nil
}

// ValidateSanURI verifies that the comma-separated sanURI value only
// contains SPIFFE and instance id uris. An empty value is valid.
func ValidateSanURI(sanURI string) bool {
	if sanURI == "" {
		log.Debug().Msg("request contains no sanURI to verify")
		return true
	}

	for _, uri := range strings.Split(sanURI, ",") {
		if strings.HasPrefix(uri, URISPIFFEPrefix) || strings.HasPrefix(uri, URIInstanceIDPrefix) {
			continue
		}
		log.Error().Str("uri", uri).Msg("request contains unsupported uri value")
		return false
	}

	return true
}
