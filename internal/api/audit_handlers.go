package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/api/presenter"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// auditQuerier is implemented by audit backends that can be searched,
// such as the in-memory auditor. File-backed auditors are append-only.
type auditQuerier interface {
	GetRecent(limit int) ([]core.AuditEntry, error)
	Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error)
}

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	querier, ok := s.auditor.(auditQuerier)
	if !ok {
		presenter.Error(w, r, "audit backend does not support queries", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterDomain := q.Get("domain")
	filterInstanceID := q.Get("instance_id")

	limit := 50
	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err != nil {
			logger.Warn().Err(err).Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		} else {
			limit = v
		}
	}

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterDomain != "" || filterInstanceID != "" {
		logger.Info().Msgf("applying audit log filters")
		entries, err = querier.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterDomain != "" && entry.Domain != filterDomain {
				return false
			}
			if filterInstanceID != "" && entry.InstanceID != filterInstanceID {
				return false
			}
			return true
		}, limit)
	} else {
		log.Debug().Msgf("retrieving recent audit log entries")
		entries, err = querier.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
