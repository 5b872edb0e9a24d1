// Package leads provides the lead management bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"leadtracker_backend/internal/events"
	apphttp "leadtracker_backend/internal/http"
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/handler"
	"leadtracker_backend/internal/leads/repository"
	"leadtracker_backend/internal/leads/service"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"
	"leadtracker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, pipeline *domain.Pipeline, eventBus events.Publisher, val *validator.Validator, m *metrics.Metrics, log *logger.Logger) (*Module, error) {
	return NewModuleWithRepository(repository.New(pool, pipeline), pipeline, eventBus, val, m, log)
}

// NewModuleWithRepository wires the module on top of an existing repository.
func NewModuleWithRepository(repo repository.LeadRepository, pipeline *domain.Pipeline, eventBus events.Publisher, val *validator.Validator, m *metrics.Metrics, log *logger.Logger) (*Module, error) {
	if err := handler.RegisterValidations(val, pipeline); err != nil {
		return nil, err
	}

	svc := service.New(repo, pipeline, eventBus, log)
	svc.SetMetrics(m)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead service for other modules and commands.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Leads)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
