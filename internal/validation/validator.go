package validation

import (
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// ValidateRules checks a rule set for consistency and compiles any match
// expressions. The returned slice carries the compiled programs.
func ValidateRules(rules []core.Rule) ([]core.Rule, error) {
	seenNames := make(map[string]struct{})
	var validRules []core.Rule

	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule #%d missing name", i)
		}
		if _, exists := seenNames[rule.Name]; exists {
			return nil, fmt.Errorf("rule name '%s' is not unique", rule.Name)
		}
		seenNames[rule.Name] = struct{}{}

		if rule.Action == "" && rule.Resource == "" && rule.Principal == "" && rule.Expr == "" {
			return nil, fmt.Errorf("rule '%s' matches everything; set at least one of action, resource, principal, or expr", rule.Name)
		}

		if rule.Expr != "" {
			// compile and validate expression
			out, err := expr.Compile(rule.Expr, expr.AsBool(), expr.Env(map[string]any{
				"action":    "",
				"resource":  "",
				"principal": "",
			}))
			if err != nil {
				return nil, fmt.Errorf("compiling expr for rule '%s': %w", rule.Name, err)
			}
			rule.CompiledExpr = out
		}

		validRules = append(validRules, rule)
	}

	return validRules, nil
}
