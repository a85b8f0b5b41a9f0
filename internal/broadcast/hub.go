// Package broadcast fans snapshot updates out to dashboard clients over
// websockets. Topics are keyed by vehicle UUID; delivery is at-most-once and
// never blocks the ingestion path.
package broadcast

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Project-Caravana/telemetry-service/config"
	"github.com/Project-Caravana/telemetry-service/internal/metrics"
)

type envelope struct {
	vehicleID string
	payload   []byte
}

type subscription struct {
	client    *Client
	vehicleID string
}

// Hub owns all topic membership state. A single goroutine (Run) serializes
// every mutation, so no locks are needed on the maps.
type Hub struct {
	log *logrus.Logger
	cfg config.BroadcastConfig

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan envelope

	// topics maps a vehicle UUID to its subscribers; clients maps a client
	// back to its topics for cleanup on disconnect.
	topics  map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
}

// NewHub creates a new broadcast hub
func NewHub(cfg config.BroadcastConfig, log *logrus.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = 256
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	return &Hub{
		log:         log,
		cfg:         cfg,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan envelope, cfg.PublishBuffer),
		topics:      make(map[string]map[*Client]struct{}),
		clients:     make(map[*Client]map[string]struct{}),
	}
}

// Run processes hub events until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = make(map[string]struct{})

		case client := <-h.unregister:
			h.removeClient(client)

		case sub := <-h.subscribe:
			h.addSubscription(sub)

		case sub := <-h.unsubscribe:
			h.removeSubscription(sub)

		case env := <-h.publish:
			h.deliver(env)

		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			return
		}
	}
}

// Publish enqueues a payload for every subscriber of the vehicle's topic.
// It never blocks: if the hub is saturated, the message is dropped.
func (h *Hub) Publish(vehicleID string, payload []byte) {
	select {
	case h.publish <- envelope{vehicleID: vehicleID, payload: payload}:
	default:
		metrics.GetMetricsCollector().Inc(metrics.CounterBroadcastDropped)
	}
}

func (h *Hub) addSubscription(sub subscription) {
	subscribed, ok := h.clients[sub.client]
	if !ok {
		// Client already disconnected
		return
	}
	subscribed[sub.vehicleID] = struct{}{}

	subscribers, ok := h.topics[sub.vehicleID]
	if !ok {
		subscribers = make(map[*Client]struct{})
		h.topics[sub.vehicleID] = subscribers
	}
	subscribers[sub.client] = struct{}{}
	metrics.GetMetricsCollector().Inc(metrics.CounterSubscriptions)
}

func (h *Hub) removeSubscription(sub subscription) {
	if subscribed, ok := h.clients[sub.client]; ok {
		delete(subscribed, sub.vehicleID)
	}
	if subscribers, ok := h.topics[sub.vehicleID]; ok {
		delete(subscribers, sub.client)
		if len(subscribers) == 0 {
			delete(h.topics, sub.vehicleID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	subscribed, ok := h.clients[client]
	if !ok {
		return
	}
	for vehicleID := range subscribed {
		if subscribers, ok := h.topics[vehicleID]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.topics, vehicleID)
			}
		}
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) deliver(env envelope) {
	collector := metrics.GetMetricsCollector()
	for client := range h.topics[env.vehicleID] {
		select {
		case client.send <- env.payload:
			collector.Inc(metrics.CounterBroadcastPublished)
		default:
			// Slow subscriber: drop the message rather than stall the hub
			collector.Inc(metrics.CounterBroadcastDropped)
		}
	}
}
