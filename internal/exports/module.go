package exports

import (
	apphttp "leadtracker_backend/internal/http"
	"leadtracker_backend/platform/validator"
)

// Module is the exports bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	svc     *Service
}

// NewModule creates and initializes the exports module.
func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{
		handler: NewHandler(svc, val),
		svc:     svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "exports"
}

// RegisterRoutes mounts export routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Leads.Group("/exports"))
}

var _ apphttp.Module = (*Module)(nil)
