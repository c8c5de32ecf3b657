package api

import (
	"net/http"

	"github.com/ctyano/athenz-auth-core/internal/api/middleware"
	"github.com/ctyano/athenz-auth-core/internal/audit"
	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/service"
	"github.com/ctyano/athenz-auth-core/internal/tasks"
)

type Server struct {
	taskManager *tasks.Manager
	providers   map[string]core.Provider
	auditor     core.Auditor

	confirmations *service.ConfirmationService
}

func NewServer(
	taskManager *tasks.Manager,
	providers map[string]core.Provider,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}

	svc := service.NewConfirmationService(providers, auditor)

	return &Server{
		taskManager:   taskManager,
		providers:     providers,
		auditor:       auditor,
		confirmations: svc,
	}
}

func (s *Server) Routes(adminSigningKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// confirmation routes
	mux.HandleFunc("POST "+ConfirmInstanceRoute, s.handleConfirmInstance)
	mux.HandleFunc("POST "+RefreshInstanceRoute, s.handleRefreshInstance)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.AdminAuth(adminSigningKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
