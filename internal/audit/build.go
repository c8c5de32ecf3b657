package audit

import (
	"fmt"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// Build constructs the configured auditor. Disabled audit yields a noop.
func Build(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file auditor requires 'path'")
		}
		return NewFileAuditor(cfg.Path)
	case "memory", "":
		return NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown auditor type %q", cfg.Type)
	}
}
