package cmd

import (
	"github.com/ctyano/athenz-auth-core/internal/provider"
	"github.com/ctyano/athenz-auth-core/internal/provider/jenkins"
)

// provider schemes available to the host
func init() {
	provider.Register(jenkins.Scheme, jenkins.NewFromConfig)
}
