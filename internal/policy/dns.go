package policy

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// instanceIDLabel is the DNS label separating an instance id hostname from
// its suffix, e.g. "i-0123.instanceid.athenz.jenkins.athenz.io".
const instanceIDLabel = ".instanceid.athenz."

// ValidateCertRequestSanDNSNames checks the requested sanDNS entries
// against the workload identity and the configured suffix set, and yields
// the canonical instance id.
//
// Every entry must be either the service hostname
// "<service>.<domain-with-dashes>.<suffix>" or an instance id hostname
// "<id>.instanceid.athenz.<suffix>" for a configured suffix. The instance
// id embedded in a DNS entry must agree with the request's instance id
// attribute. sanIP and hostname identities are excluded before this check
// runs (CheckPreConditions).
func ValidateCertRequestSanDNSNames(confirmation *core.InstanceConfirmation, dnsSuffixes []string) (string, bool) {
	instanceID := confirmation.Attribute(core.AttrInstanceID)

	sanDNS := confirmation.Attribute(core.AttrSanDNS)
	if sanDNS == "" {
		return instanceID, true
	}

	dashedDomain := strings.ReplaceAll(confirmation.Domain, ".", "-")

	for _, entry := range strings.Split(sanDNS, ",") {
		if matchesServiceHostname(entry, confirmation.Service, dashedDomain, dnsSuffixes) {
			continue
		}
		if id, ok := extractInstanceID(entry, dnsSuffixes); ok {
			if instanceID == "" {
				instanceID = id
				continue
			}
			if id == instanceID {
				continue
			}
			log.Error().Str("entry", entry).Str("instance_id", instanceID).Msg("sanDNS instance id does not match request")
			return "", false
		}
		log.Error().Str("entry", entry).Msg("request contains unsupported sanDNS value")
		return "", false
	}

	if instanceID == "" {
		log.Error().Msg("request does not carry an instance id")
		return "", false
	}

	return instanceID, true
}

func matchesServiceHostname(entry, service, dashedDomain string, dnsSuffixes []string) bool {
	for _, suffix := range dnsSuffixes {
		if entry == service+"."+dashedDomain+"."+suffix {
			return true
		}
	}
	return false
}

func extractInstanceID(entry string, dnsSuffixes []string) (string, bool) {
	for _, suffix := range dnsSuffixes {
		tail := instanceIDLabel + suffix
		if strings.HasSuffix(entry, tail) {
			id := strings.TrimSuffix(entry, tail)
			if id != "" && !strings.Contains(id, ".") {
				return id, true
			}
		}
	}
	return "", false
}
