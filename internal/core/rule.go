package core

import "github.com/expr-lang/expr/vm"

// Rule grants access when an authorization check matches its action,
// resource, and principal patterns. Rules are evaluated in order; the first
// match grants access.
type Rule struct {
	// Name is a human-readable identifier for logs/debugging.
	Name string `yaml:"name" json:"name"`

	// Description explains the intent of the rule.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Action that must be requested, e.g. "jenkins.job".
	// An empty action matches any.
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Resource pattern the requested resource must match. Supports a
	// trailing "*" wildcard; the resource for attestation checks is
	// "<domain>:<token subject>". An empty resource matches any.
	Resource string `yaml:"resource,omitempty" json:"resource,omitempty"`

	// Principal pattern the requesting identity must match, e.g.
	// "sports.api" or "sports.*". An empty principal matches any.
	Principal string `yaml:"principal,omitempty" json:"principal,omitempty"`

	// Expr is an optional expression for more complex matching logic,
	// evaluated with {action, resource, principal} in scope.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`

	// CompiledExpr holds the pre-compiled form of Expr for efficient evaluation.
	CompiledExpr *vm.Program `yaml:"-" json:"-"`
}
