package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/validation"
)

type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Providers    []ProviderConfig `yaml:"providers"`
	Authorizer   AuthorizerConfig `yaml:"authorizer"`
	Rules        []core.Rule      `yaml:"rules"`
	Audit        AuditConfig      `yaml:"audit"`
	PolicySource *PolicySource    `yaml:"policy_source"`
}

type ServerConfig struct {
	// Addr the HTTP server listens on, e.g. ":8472".
	Addr string `yaml:"addr"`

	// AdminSigningKey verifies bearer tokens on operational endpoints
	// (tasks, audit). Leaving it empty disables those endpoints.
	AdminSigningKey string `yaml:"admin_signing_key"`
}

// ProviderConfig holds configuration for an attestation provider.
type ProviderConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "jenkins"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuthorizerConfig selects the policy decision point implementation.
type AuthorizerConfig struct {
	Type   string         `yaml:"type"`    // e.g., "rules", "webhook", "allow_all"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

type PolicySourceSync struct {
	Interval time.Duration `yaml:"interval"`
}

type GitHubSourceConfig struct {
	// Token authenticates against the GitHub API.
	Token string `yaml:"token"`

	// ServerURL is the GitHub Enterprise server URL.
	// For GitHub.com, this can be left empty.
	ServerURL string `yaml:"server"`

	// Owner of the GitHub repository.
	Owner string `yaml:"owner"`

	// Repo is the name of the GitHub repository.
	Repo string `yaml:"repo"`

	// Path is the directory path within the repository to load rules from.
	// For example, "rules/".
	Path string `yaml:"path"`

	// Ref is the git reference to use (e.g. a branch).
	// For example, "main".
	Ref string `yaml:"ref"`
}

func (c *GitHubSourceConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if c.Ref == "" {
		return fmt.Errorf("ref is required")
	}
	return nil
}

// PolicySource holds configuration for where to load authorization rules from.
type PolicySource struct {
	// GitHub holds configuration for GitHub as a rule source.
	GitHub *GitHubSourceConfig `yaml:"github,omitempty"`

	Sync PolicySourceSync `yaml:"sync"`
}

func (s *PolicySource) Validate() error {
	switch {
	case s.GitHub != nil:
		if err := s.GitHub.Validate(); err != nil {
			return fmt.Errorf("validating GitHub policy source: %w", err)
		}
	default:
		return fmt.Errorf("no valid policy source configured")
	}
	return nil
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	validProviders := make(map[string]struct{})
	for idx, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider at index %d has empty name", idx)
		}
		if _, exists := validProviders[p.Name]; exists {
			return fmt.Errorf("provider name '%s' is not unique", p.Name)
		}
		validProviders[p.Name] = struct{}{}
	}

	if c.Authorizer.Type == "" {
		c.Authorizer.Type = "rules"
	}

	validRules, err := validation.ValidateRules(c.Rules)
	if err != nil {
		return fmt.Errorf("validating rules: %w", err)
	}
	c.Rules = validRules

	if c.PolicySource != nil {
		if err := c.PolicySource.Validate(); err != nil {
			return fmt.Errorf("validating policy source: %w", err)
		}
	}

	return nil
}
