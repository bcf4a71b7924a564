// Package events broadcasts marker activations to host UIs over WebSocket.
//
// A host reports an interaction with POST /activate; the engine resolves the
// enclosing markers and every client connected to /ws receives a
// marker-activated message.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string                  `json:"type"`
	Timestamp string                  `json:"timestamp"`
	Event     *engine.MarkerActivated `json:"event,omitempty"`
}

// MessageMarkerActivated is the Type of activation messages.
const MessageMarkerActivated = "marker-activated"

// client is one WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{} // closed when Run returns
	mu         sync.RWMutex
	cfg        Config
}

// NewHub returns a hub; call Run to start it.
func NewHub(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		cfg:        cfg,
	}
}

// Run handles registration and broadcasting until ctx ends, then closes every
// client. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an activation for every client. It never blocks; when the
// queue is full the message is dropped and logged.
func (h *Hub) Publish(evt engine.MarkerActivated) {
	data, err := json.Marshal(Message{
		Type:      MessageMarkerActivated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     &evt,
	})
	if err != nil {
		logging.Error("failed to marshal activation", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message", "annotation_id", evt.AnnotationID)
	}
}

// Attach subscribes the hub to an engine's activations.
func (h *Hub) Attach(e *engine.Engine) (detach func()) {
	return e.Subscribe(h.Publish)
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c, or returns at once when the hub has stopped.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump discards client input and keeps the read deadline fresh.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}
	}
}

// writePump sends queued messages, one per frame, and pings periodically.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
