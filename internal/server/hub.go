package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Ping interval; must be less than pongWait.
	pingPeriod = 54 * time.Second

	// Clients only send control frames.
	maxMessageSize = 512
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans alerts out to connected websocket clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan watcher.Alert
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      chan chan int
	logger     *zap.Logger
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan watcher.Alert, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		count:      make(chan chan int),
		logger:     logger,
	}
}

// Run owns the client set until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.logger.Debug("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("client registered", zap.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.logger.Debug("client unregistered", zap.Int("total_clients", len(h.clients)))

		case alert := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- Message{Type: "alert", Data: alert}:
				default:
					// Slow client: drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("client channel full, disconnected")
				}
			}

		case reply := <-h.count:
			reply <- len(h.clients)
		}
	}
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastAlert queues an alert for every client, dropping it when the
// queue is full.
func (h *Hub) BroadcastAlert(a watcher.Alert) {
	select {
	case h.broadcast <- a:
	default:
		h.logger.Warn("broadcast channel full, dropping alert", zap.String("alert_id", a.ID))
	}
}

// ClientCount returns the number of connected clients, or 0 once stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Client is one websocket connection.
type Client struct {
	conn   *websocket.Conn
	hub    *Hub
	send   chan Message
	logger *zap.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		send:   make(chan Message, 256),
		logger: logger,
	}
}

// ReadPump drains control frames until the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// WritePump writes queued messages and periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warn("websocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
