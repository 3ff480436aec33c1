package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4 * 1024
)

// subscribeRequest is the only inbound message clients send: which channel
// groups they want.
type subscribeRequest struct {
	Action   string   `json:"action"` // subscribe or unsubscribe
	Channels []string `json:"channels"`
}

// Client represents one WebSocket subscriber.
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Hub reference
	hub *Hub

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Client ID for tracking
	id string

	// Channel-group subscriptions
	subMu         sync.RWMutex
	subscriptions map[string]bool

	logger *slog.Logger
}

// NewClient creates a client subscribed to the anomaly alerts group by
// default; clients opt into the other groups with a subscribe message.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, id string, logger *slog.Logger) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		ctx:    clientCtx,
		cancel: cancel,
		id:     id,
		subscriptions: map[string]bool{
			models.ChannelAnomalyAlerts: true,
		},
		logger: logger,
	}
}

func (c *Client) subscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[channel]
}

// ReadPump consumes subscription updates from the peer and detects closes.
func (c *Client) ReadPump() {
	defer func() {
		// The hub may already be stopped; never block on unregister.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn("websocket read error", "client_id", c.id, "error", err)
				}
				return
			}
			c.handleMessage(message)
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var req subscribeRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.logger.Warn("ignoring malformed subscription message", "client_id", c.id, "error", err)
		return
	}
	known := map[string]bool{
		models.ChannelAnomalyAlerts: true,
		models.ChannelStreamMetrics: true,
		models.ChannelEscalations:   true,
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range req.Channels {
		if !known[ch] {
			continue
		}
		switch req.Action {
		case "subscribe":
			c.subscriptions[ch] = true
		case "unsubscribe":
			delete(c.subscriptions, ch)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
