// Package feed pushes live simulation events (trades, messages, phase
// changes, report availability) to WebSocket subscribers.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubConfig configures WebSocket feed behavior.
type HubConfig struct {
	// WriteTimeout is timeout for writing one frame to a subscriber.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// SendBuffer is the per-subscriber outbound queue; a subscriber that
	// falls this far behind is dropped.
	SendBuffer int
}

// DefaultHubConfig returns default feed configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		SendBuffer:   64,
	}
}

// Event is one feed frame.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	At      int64       `json:"at"` // Unix ms
}

// Event types published by the simulation.
const (
	EventTrade       = "trade"
	EventMessage     = "message"
	EventPhaseChange = "phase_change"
	EventRunStatus   = "run_status"
	EventReport      = "report"
)

// Hub fans events out to connected WebSocket subscribers. Slow subscribers
// are dropped rather than allowed to stall the simulation.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
}

// NewHub creates a feed hub.
func NewHub(config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}

	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The control surface is same-origin or internal tooling.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  log.New(os.Stdout, "[feed] ", log.LstdFlags),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Printf("subscriber connected (%d active)", count)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Publish queues an event to every subscriber. Never blocks: a subscriber
// with a full queue is dropped.
func (h *Hub) Publish(eventType string, payload interface{}) {
	event := Event{Type: eventType, Payload: payload, At: time.Now().UnixMilli()}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.dropLocked(c)
			h.logger.Printf("subscriber dropped: send queue full")
		}
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// dropLocked removes a client and signals its write loop. Caller holds mu.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
}

// writeLoop drains the client's queue and keeps the connection alive with
// pings. Exits on write failure or drop.
func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(h.config.PingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case event := <-c.send:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Printf("marshal event: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.remove(c)
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

// readLoop discards inbound frames; it exists to notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}
