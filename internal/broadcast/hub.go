// Package broadcast is the many-to-many pub/sub fan-out of structured
// Messages to subscribed clients (spec §4.7): one Hub per server process,
// clients registered per project, a 30s heartbeat that prunes dead
// subscribers. Grounded on the teacher's
// internal/orchestrator/streaming.Hub/Client pair, generalized from a
// single task ID to a project ID and extended with the heartbeat loop
// and drop-on-full semantics spec.md calls out explicitly.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/common/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 35 * time.Second
	heartbeat      = 30 * time.Second
	maxMessageSize = 1024 * 1024
	sendBufferSize = 256
)

// Client is one subscribed WebSocket connection.
type Client struct {
	id        string
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	logger    *logger.Logger
	projectID string

	mu         sync.Mutex
	missedPong bool
}

// NewClient wraps an upgraded WebSocket connection as a Hub subscriber
// for one project. Call Register, then run ReadPump/WritePump (typically
// in their own goroutines) until the connection closes.
func NewClient(id string, conn *websocket.Conn, hub *Hub, projectID string, log *logger.Logger) *Client {
	return &Client{
		id:        id,
		conn:      conn,
		hub:       hub,
		send:      make(chan []byte, sendBufferSize),
		projectID: projectID,
		logger:    log.WithFields(zap.String("client_id", id), zap.String("project_id", projectID)),
	}
}

// Send enqueues a pre-marshaled frame, dropping it (never blocking) if
// the client's buffer is full; a full buffer means the client is not
// keeping up and will be pruned by the hub's own overflow handling.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump drains the connection so pong control frames are processed;
// the protocol itself requires no client->server application messages
// (spec §6 "Wire protocol (subscribe)").
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.missedPong = false
		c.mu.Unlock()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump writes queued frames and drives the heartbeat ping loop,
// terminating the client if the previous ping went unanswered.
func (c *Client) WritePump() {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			missed := c.missedPong
			c.missedPong = true
			c.mu.Unlock()
			if missed {
				c.logger.Debug("client missed heartbeat pong, closing")
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub fans Messages out to every Client subscribed to a project.
type Hub struct {
	mu              sync.RWMutex
	clients         map[*Client]bool
	projectClients  map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	publish    chan Message

	logger *logger.Logger
}

// NewHub creates an idle Hub; call Run to start its processing loop.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		projectClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		publish:        make(chan Message, 256),
		logger:         log.WithFields(zap.String("component", "broadcast_hub")),
	}
}

// Run processes register/unregister/publish events until ctx is
// cancelled, at which point every connected client is closed.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("broadcast hub started")
	defer h.logger.Info("broadcast hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.projectClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			if h.projectClients[c.projectID] == nil {
				h.projectClients[c.projectID] = make(map[*Client]bool)
			}
			h.projectClients[c.projectID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()

		case msg := <-h.publish:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("failed to marshal broadcast message", zap.Error(err))
				continue
			}

			h.mu.RLock()
			targets := make([]*Client, 0, len(h.projectClients[msg.ProjectID]))
			for c := range h.projectClients[msg.ProjectID] {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				if !c.Send(data) {
					h.mu.Lock()
					h.removeLocked(c)
					h.mu.Unlock()
				}
			}
		}
	}
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	if set, ok := h.projectClients[c.projectID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.projectClients, c.projectID)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub. Safe to call more than once.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Publish broadcasts msg to every client subscribed to msg.ProjectID.
// Never blocks the caller beyond the internal queue's buffer.
func (h *Hub) Publish(msg Message) {
	select {
	case h.publish <- msg:
	default:
		// Queue saturated; drop rather than block the orchestrator's
		// event-processing goroutine (spec §7 Transient never blocks the
		// stream).
	}
}

// SubscriberCount returns how many clients are subscribed to projectID.
func (h *Hub) SubscriberCount(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.projectClients[projectID])
}
