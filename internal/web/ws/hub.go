package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/pairlobby/internal/metrics"
	"github.com/mcoot/pairlobby/internal/model"
)

type registration struct {
	client *Client
	done   chan struct{}
}

// Hub tracks every live websocket client of this process by connection id
type Hub struct {
	clients map[model.ConnID]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Channels for managing clients
	register   chan registration
	unregister chan registration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub
func NewHub(metrics *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[model.ConnID]*Client),
		logger:     logger.With(slog.String("component", "ws")),
		metrics:    metrics,
		register:   make(chan registration),
		unregister: make(chan registration),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("ws hub started")
	for {
		select {
		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.client.id] = reg.client
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.metrics.ConnectionOpened()
			close(reg.done)
			h.logger.Info("ws client registered",
				slog.String("socket_id", string(reg.client.id)),
				slog.Int("total_clients", clientCount))

		case reg := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[reg.client.id]; ok && current == reg.client {
				delete(h.clients, reg.client.id)
				close(reg.client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.metrics.ConnectionClosed()
				h.logger.Info("ws client unregistered",
					slog.String("socket_id", string(reg.client.id)),
					slog.Duration("connection_duration", time.Since(reg.client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}
			close(reg.done)

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
				h.metrics.ConnectionClosed()
			}
			h.mu.Unlock()
			h.logger.Info("ws hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client to the hub. The client is visible to IsConnected
// once Register returns. It reports false if the hub is already closed.
func (h *Hub) Register(client *Client) bool {
	return h.call(h.register, client)
}

// Unregister removes a client from the hub and closes its send buffer
func (h *Hub) Unregister(client *Client) {
	h.call(h.unregister, client)
}

func (h *Hub) call(ch chan registration, client *Client) bool {
	reg := registration{client: client, done: make(chan struct{})}
	select {
	case ch <- reg:
		<-reg.done
		return true
	case <-h.done:
		return false
	}
}

// Send queues a message for one connection. A full client buffer drops the
// message rather than stalling the caller.
func (h *Hub) Send(id model.ConnID, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]
	if !ok {
		return model.ErrConnectionNotFound
	}
	h.enqueue(client, message)
	return nil
}

// Broadcast queues a message for every connection
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		h.enqueue(client, message)
	}
}

// enqueue must be called with mu held
func (h *Hub) enqueue(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		h.metrics.MessageDropped()
		h.logger.Warn("ws message dropped - client buffer full",
			slog.String("socket_id", string(client.id)))
	}
}

// IsConnected reports whether id is attached to this hub
func (h *Hub) IsConnected(id model.ConnID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close shuts down the hub, closing every client's send buffer
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
