// Package sse provides the live change-event hub shared by Server-Sent Events
// and WebSocket subscribers.
package sse

import (
	"context"
	"sync"
	"time"

	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"

	"github.com/google/uuid"
)

// EventType represents different types of change events
type EventType string

const (
	EventLeadCreated EventType = "lead_created"
	EventLeadUpdated EventType = "lead_updated"
	EventLeadDeleted EventType = "lead_deleted"
)

// DefaultBufferSize is the per-subscriber queue length. A subscriber whose
// queue is full misses events instead of slowing the broadcaster.
const DefaultBufferSize = 32

// Event is the payload pushed to every subscriber.
type Event struct {
	Type      EventType   `json:"type"`
	LeadID    uuid.UUID   `json:"leadId"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Subscription is one connected observer.
type Subscription struct {
	ID     uuid.UUID
	Kind   string
	events chan Event
}

// Events yields broadcast events until the subscription is removed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Service manages subscriber registration and event broadcasting.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Subscription
	buffer  int
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New creates a new hub
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID]*Subscription),
		buffer:  DefaultBufferSize,
		log:     log,
	}
}

// SetMetrics enables subscriber gauges and drop counters.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetBufferSize changes the queue length of subscriptions created afterwards.
func (s *Service) SetBufferSize(n int) {
	if n > 0 {
		s.buffer = n
	}
}

// Subscribe registers a new observer. kind is informational ("sse", "websocket").
func (s *Service) Subscribe(kind string) *Subscription {
	sub := &Subscription{
		ID:     uuid.New(),
		Kind:   kind,
		events: make(chan Event, s.buffer),
	}

	s.mu.Lock()
	s.clients[sub.ID] = sub
	count := len(s.clients)
	s.mu.Unlock()

	s.setActive(count)
	s.log.Debug("subscriber connected", "subscriberId", sub.ID, "kind", kind, "subscribers", count)
	return sub
}

// Unsubscribe removes the observer and closes its channel. Safe to call twice.
func (s *Service) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	if _, ok := s.clients[sub.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, sub.ID)
	close(sub.events)
	count := len(s.clients)
	s.mu.Unlock()

	s.setActive(count)
	s.log.Debug("subscriber disconnected", "subscriberId", sub.ID, "kind", sub.Kind, "subscribers", count)
}

// Count returns the number of connected subscribers.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast delivers the event to every subscriber without blocking and
// returns how many accepted it. Full queues are skipped and logged. Sends
// happen under the read lock so Unsubscribe cannot close a channel mid-send.
func (s *Service) Broadcast(ctx context.Context, event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for id, sub := range s.clients {
		if ctx.Err() != nil {
			s.log.Warn("broadcast interrupted", "eventType", event.Type, "error", ctx.Err())
			break
		}
		select {
		case sub.events <- event:
			delivered++
		default:
			s.log.DeliveryDropped(id.String(), string(event.Type), "buffer full")
			if s.metrics != nil {
				s.metrics.NotificationsDropped.Inc()
			}
		}
	}

	return delivered
}

// Close disconnects every subscriber.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.clients {
		close(sub.events)
		delete(s.clients, id)
	}
	s.setActive(0)
}

func (s *Service) setActive(n int) {
	if s.metrics != nil {
		s.metrics.ActiveSubscribers.Set(float64(n))
	}
}
