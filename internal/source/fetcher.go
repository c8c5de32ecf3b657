package source

import (
	"context"

	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/logging"
)

type Fetcher interface {
	Fetch(ctx context.Context, log logging.InternalLogger) ([]core.Rule, error)
}
