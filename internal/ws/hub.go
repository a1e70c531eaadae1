// Package ws fans workflow events out to a user's live connections
// over WebSocket and SSE. Events originate in this process, so the hub
// is purely in-memory; each event is delivered only to connections
// authenticated as the addressed user.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/contentgen/contentgen-backend/internal/auth"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/notify"
)

type Hub struct {
	clients     map[*Client]bool
	subscribers map[chan []byte]string // SSE channel -> user id
	register    chan *Client
	unregister  chan *Client
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
	origins     []string
	mu          sync.RWMutex
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	lastActive time.Time
}

// Envelope is the wire format for pushed events.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func NewHub(allowedOrigins []string, logger *zap.SugaredLogger, metrics *metrics.Metrics) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[chan []byte]string),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		logger:      logger,
		metrics:     metrics,
		origins:     allowedOrigins,
	}
}

func (h *Hub) Run(ctx context.Context) {
	go h.startClientCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			h.logger.Infow("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "user", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.DecrementConnections(ctx)
			h.logger.Debugw("Client unregistered", "user", client.userID)
		}
	}
}

// Publish implements notify.Sink: the event goes to every WebSocket and
// SSE connection the addressed user has open.
func (h *Hub) Publish(ctx context.Context, userID string, event notify.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorw("Failed to marshal event", "error", err)
		return
	}
	payload, err := json.Marshal(Envelope{
		Type:      event.Type,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Errorw("Failed to marshal envelope", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow client; drop the connection rather than block.
			delete(h.clients, client)
			close(client.send)
		}
	}

	for ch, user := range h.subscribers {
		if user != userID {
			continue
		}
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers an SSE listener for userID. The returned cancel
// func must be called when the connection ends.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	h.subscribers[ch] = userID
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // same-origin
	}
	for _, allowed := range h.origins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the connection. Requests reach here already
// authenticated, so the user id is taken from the context.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		lastActive: time.Now(),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) startClientCleanup(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupInactiveClients()
		}
	}
}

func (h *Hub) cleanupInactiveClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-90 * time.Second)

	for client := range h.clients {
		if client.lastActive.Before(cutoff) {
			delete(h.clients, client)
			close(client.send)
			h.logger.Debugw("Cleaned up inactive client", "user", client.userID)
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.lastActive = time.Now()
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		// Inbound messages are ignored; the socket is push-only.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			break
		}
		c.lastActive = time.Now()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
