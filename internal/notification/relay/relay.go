// Package relay fans change events out across API replicas through Redis
// pub/sub so every replica's hub sees every change.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"leadtracker_backend/internal/notification/sse"
	"leadtracker_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Broadcaster is the local delivery target for relayed events.
type Broadcaster interface {
	Broadcast(ctx context.Context, event sse.Event) int
}

// Relay publishes events to a Redis channel and replays everything received
// on that channel into the local hub.
type Relay struct {
	client  *redis.Client
	channel string
	hub     Broadcaster
	log     *logger.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func New(client *redis.Client, channel string, hub Broadcaster, log *logger.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		hub:     hub,
		log:     log,
	}
}

// Publish sends the event to every replica, this one included.
func (r *Relay) Publish(ctx context.Context, event sse.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Start subscribes to the channel and waits for Redis to confirm before
// returning, so events published afterwards are not missed. Received events
// are forwarded until ctx ends or Close is called.
func (r *Relay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	r.mu.Lock()
	r.pubsub = pubsub
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.forward(ctx, pubsub, done)
	r.log.Info("event relay subscribed", "channel", r.channel)
	return nil
}

func (r *Relay) forward(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event sse.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Warn("dropping malformed relay message", "channel", msg.Channel, "error", err)
				continue
			}
			r.hub.Broadcast(ctx, event)
		}
	}
}

// Close unsubscribes and waits for the forwarding goroutine to exit.
func (r *Relay) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
