// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Publisher   = events.Publisher
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// Change types as they appear on the notification wire.
const (
	ChangeLeadCreated = "lead_created"
	ChangeLeadUpdated = "lead_updated"
	ChangeLeadDeleted = "lead_deleted"
)

// LeadChange is implemented by every lead lifecycle event.
type LeadChange interface {
	Event
	ChangeType() string
	Subject() domain.Lead
}

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published after a new lead has been stored.
type LeadCreated struct {
	BaseEvent
	Lead domain.Lead
}

func (e LeadCreated) EventName() string    { return "leads.lead.created" }
func (e LeadCreated) ChangeType() string   { return ChangeLeadCreated }
func (e LeadCreated) Subject() domain.Lead { return e.Lead }

// LeadUpdated is published after an update has been committed.
type LeadUpdated struct {
	BaseEvent
	Lead domain.Lead
	// Direction is how the stage moved, DirectionNone when it did not.
	Direction domain.Direction
}

func (e LeadUpdated) EventName() string    { return "leads.lead.updated" }
func (e LeadUpdated) ChangeType() string   { return ChangeLeadUpdated }
func (e LeadUpdated) Subject() domain.Lead { return e.Lead }

// LeadDeleted is published after a lead has been removed. Lead is its last state.
type LeadDeleted struct {
	BaseEvent
	Lead domain.Lead
}

func (e LeadDeleted) EventName() string    { return "leads.lead.deleted" }
func (e LeadDeleted) ChangeType() string   { return ChangeLeadDeleted }
func (e LeadDeleted) Subject() domain.Lead { return e.Lead }

// LeadEventNames lists the bus names of every LeadChange event.
func LeadEventNames() []string {
	return []string{
		LeadCreated{}.EventName(),
		LeadUpdated{}.EventName(),
		LeadDeleted{}.EventName(),
	}
}

// NewLeadCreated stamps a creation event.
func NewLeadCreated(lead domain.Lead, at time.Time) LeadCreated {
	return LeadCreated{BaseEvent: NewBaseEvent(at), Lead: lead}
}

// NewLeadUpdated stamps an update event.
func NewLeadUpdated(lead domain.Lead, direction domain.Direction, at time.Time) LeadUpdated {
	return LeadUpdated{BaseEvent: NewBaseEvent(at), Lead: lead, Direction: direction}
}

// NewLeadDeleted stamps a deletion event.
func NewLeadDeleted(lead domain.Lead, at time.Time) LeadDeleted {
	return LeadDeleted{BaseEvent: NewBaseEvent(at), Lead: lead}
}
