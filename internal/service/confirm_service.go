package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/core"
)

// ConfirmationService routes instance confirmation requests to the
// responsible provider and records an audit entry for every decision.
type ConfirmationService struct {
	providers map[string]core.Provider
	auditor   core.Auditor
}

func NewConfirmationService(providers map[string]core.Provider, auditor core.Auditor) *ConfirmationService {
	return &ConfirmationService{
		providers: providers,
		auditor:   auditor,
	}
}

// ConfirmInstance validates the request through the named provider. Every
// rejection surfaces as a forbidden outcome; the caller is expected to
// treat it as terminal for the given token.
func (s *ConfirmationService) ConfirmInstance(ctx context.Context, confirmation *core.InstanceConfirmation) (*core.InstanceConfirmation, error) {
	return s.dispatch(ctx, "instance.confirm", confirmation, func(p core.Provider) (*core.InstanceConfirmation, error) {
		return p.ConfirmInstance(ctx, confirmation)
	})
}

// RefreshInstance forwards a certificate refresh request. Providers issuing
// non-renewable certificates always reject.
func (s *ConfirmationService) RefreshInstance(ctx context.Context, confirmation *core.InstanceConfirmation) (*core.InstanceConfirmation, error) {
	return s.dispatch(ctx, "instance.refresh", confirmation, func(p core.Provider) (*core.InstanceConfirmation, error) {
		return p.RefreshInstance(ctx, confirmation)
	})
}

func (s *ConfirmationService) dispatch(ctx context.Context, action string, confirmation *core.InstanceConfirmation,
	call func(core.Provider) (*core.InstanceConfirmation, error)) (*core.InstanceConfirmation, error) {

	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)

	auditEntry := core.AuditEntry{
		ID:         reqID,
		Time:       time.Now(),
		Action:     action,
		Provider:   confirmation.Provider,
		Domain:     confirmation.Domain,
		Service:    confirmation.Service,
		InstanceID: confirmation.Attribute(core.AttrInstanceID),
	}
	defer func() {
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for instance confirmation")
		}
	}()

	logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("domain", confirmation.Domain).Str("service", confirmation.Service)
	})

	prov, ok := s.providers[confirmation.Provider]
	if !ok {
		auditEntry.Error = "requested provider not found"
		return nil, httpError(http.StatusBadRequest,
			fmt.Errorf("requested provider '%s' not found", confirmation.Provider))
	}

	result, err := call(prov)
	if err != nil {
		auditEntry.Error = err.Error()
		if core.IsForbidden(err) {
			return nil, httpError(http.StatusForbidden, err)
		}
		return nil, httpError(http.StatusInternalServerError, err)
	}

	auditEntry.Approved = true
	auditEntry.Attributes = result.Attributes

	return result, nil
}
