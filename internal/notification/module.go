// Package notification turns lead change events from the domain bus into
// live updates for connected observers. Domain modules never see the hub.
package notification

import (
	"context"
	"time"

	"leadtracker_backend/internal/events"
	apphttp "leadtracker_backend/internal/http"
	"leadtracker_backend/internal/leads/domain"
	leadservice "leadtracker_backend/internal/leads/service"
	notifhandler "leadtracker_backend/internal/notification/handler"
	"leadtracker_backend/internal/notification/sse"
	"leadtracker_backend/platform/config"
	"leadtracker_backend/platform/logger"
)

const publishTimeout = 5 * time.Second

// RelayPublisher forwards events to other replicas.
type RelayPublisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// Module handles lead change subscriptions and the streaming endpoints.
type Module struct {
	hub      *sse.Service
	pipeline *domain.Pipeline
	relay    RelayPublisher
	handler  *notifhandler.HTTPHandler
	log      *logger.Logger
}

func New(hub *sse.Service, pipeline *domain.Pipeline, cfg config.HTTPConfig, log *logger.Logger) *Module {
	return &Module{
		hub:      hub,
		pipeline: pipeline,
		handler:  notifhandler.NewHTTPHandler(hub, cfg, log),
		log:      log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string { return "notification" }

// RegisterRoutes mounts the SSE and WebSocket streams under /leads.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Leads)
}

// SetRelay routes every event through the cross-replica relay, which feeds
// the local hub on receipt.
func (m *Module) SetRelay(r RelayPublisher) { m.relay = r }

// Hub exposes the local subscriber hub.
func (m *Module) Hub() *sse.Service { return m.hub }

// RegisterHandlers subscribes to all lead change events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, name := range events.LeadEventNames() {
		bus.Subscribe(name, m)
	}
	m.log.Info("notification module registered event handlers")
}

// Handle converts a lead change into a wire event and broadcasts it.
// Delivery problems are logged and never returned to the bus.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	change, ok := event.(events.LeadChange)
	if !ok {
		return nil
	}

	lead := change.Subject()
	wire := sse.Event{
		Type:      sse.EventType(change.ChangeType()),
		LeadID:    lead.ID,
		Data:      leadservice.ToLeadResponse(m.pipeline, lead),
		Timestamp: change.OccurredAt(),
	}

	if m.relay != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		err := m.relay.Publish(pubCtx, wire)
		if err == nil {
			return nil
		}
		m.log.Warn("relay publish failed, delivering locally", "eventType", wire.Type, "leadId", lead.ID, "error", err)
	}

	delivered := m.hub.Broadcast(ctx, wire)
	m.log.Debug("change event broadcast", "eventType", wire.Type, "leadId", lead.ID, "subscribers", delivered)
	return nil
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
