package authz

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// Build constructs the configured Authorizer. The "rules" type returns the
// given Manager so that rule-set syncs are observed by the running
// authorizer.
func Build(cfg config.AuthorizerConfig, ruleManager *Manager) (core.Authorizer, error) {
	switch cfg.Type {
	case "rules":
		return ruleManager, nil
	case "webhook":
		var conf WebhookConfig
		if err := decode(cfg.Config, &conf); err != nil {
			return nil, fmt.Errorf("decoding webhook authorizer config: %w", err)
		}
		return NewWebhookAuthorizer(conf)
	case "allow_all":
		log.Warn().Msg("allow_all authorizer configured; every validated token will be approved")
		return AllowAll{}, nil
	default:
		return nil, fmt.Errorf("unknown authorizer type %q", cfg.Type)
	}
}

func decode(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// AllowAll approves every access check. Development use only.
type AllowAll struct{}

var _ core.Authorizer = AllowAll{}

func (AllowAll) Access(context.Context, string, string, core.Principal) (bool, error) {
	return true, nil
}
