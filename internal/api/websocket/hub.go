// Package websocket fans anomaly alerts out to dashboard subscribers. Clients
// subscribe to channel groups (anomaly_alerts, stream_metrics, escalations)
// and receive every message broadcast to a group they joined.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/metrics"
)

// envelope pairs a serialized message with its target channel group.
type envelope struct {
	channel string
	data    []byte
}

// Hub maintains active WebSocket connections and broadcasts alert messages to
// subscribed channel groups.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to fan out
	broadcast chan envelope

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.subscribed(env.channel) {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					// Client buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub and closes all client connections.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnectionsActive.Set(0)
}

// Broadcast serializes an alert message and fans it out to every client
// subscribed to the channel group.
func (h *Hub) Broadcast(channel string, msg models.AlertMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- envelope{channel: channel, data: data}:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
