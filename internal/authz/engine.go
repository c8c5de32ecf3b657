package authz

import (
	"context"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// Engine is a rule-based Authorizer. It holds an ordered rule set and
// grants access on the first matching rule.
type Engine struct {
	rules []core.Rule
}

// New creates a new Engine with the given rules.
func New(rules []core.Rule) *Engine {
	return &Engine{
		rules: rules,
	}
}

var _ core.Authorizer = (*Engine)(nil)

func (e *Engine) Access(_ context.Context, action, resource string, principal core.Principal) (bool, error) {
	for _, rule := range e.rules {
		if matches(rule, action, resource, principal) {
			log.Debug().Str("rule", rule.Name).Str("action", action).Str("resource", resource).Msg("access granted")
			return true, nil
		}
	}
	return false, nil
}

func matches(rule core.Rule, action, resource string, principal core.Principal) bool {
	if rule.Action != "" && rule.Action != action {
		return false
	}
	if rule.Resource != "" && !matchPattern(rule.Resource, resource) {
		return false
	}
	if rule.Principal != "" && !matchPattern(rule.Principal, principal.FullName()) {
		return false
	}
	if rule.CompiledExpr != nil {
		ok, err := expr.Run(rule.CompiledExpr, map[string]any{
			"action":    action,
			"resource":  resource,
			"principal": principal.FullName(),
		})
		if err != nil {
			log.Warn().Err(err).Msgf("error evaluating rule expression for rule '%s'", rule.Name)
			return false
		}
		b, bOk := ok.(bool)
		if !bOk || !b {
			return false
		}
	}
	return true
}

// matchPattern compares a value against a pattern supporting a single
// trailing "*" wildcard.
func matchPattern(pattern, value string) bool {
	if prefix, found := strings.CutSuffix(pattern, "*"); found {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}
