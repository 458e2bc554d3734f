// Package insights streams SystemPerformanceInsights and time-series
// anomaly alerts to connected WebSocket clients.
package insights

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

// Message is the envelope sent to every subscribed client.
type Message struct {
	Type      string      `json:"type"` // "insights" | "anomaly"
	Timestamp time.Time   `json:"timestamp"`
	Insights  *models.SystemPerformanceInsights `json:"insights,omitempty"`
	Anomaly   *AnomalyEvent                     `json:"anomaly,omitempty"`
}

// AnomalyEvent names the metric key an anomaly was detected on.
type AnomalyEvent struct {
	Key     string         `json:"key"`
	Anomaly models.Anomaly `json:"anomaly"`
}

// Hub maintains active WebSocket connections and broadcasts insights
// messages to all of them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a Hub bound to ctx; cancelling ctx (or calling Stop) shuts
// the broadcast loop down.
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run processes register/unregister/broadcast events until the hub's
// context is cancelled. Call in its own goroutine.
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

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full; drop the slow client rather than
					// block the broadcast loop.
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Stop cancels the hub's context and closes every client's send channel.
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// BroadcastInsights sends one SystemPerformanceInsights snapshot to every
// connected client.
func (h *Hub) BroadcastInsights(in models.SystemPerformanceInsights) error {
	return h.send(Message{Type: "insights", Timestamp: time.Now(), Insights: &in})
}

// BroadcastAnomaly sends one detected anomaly for the given metric key.
func (h *Hub) BroadcastAnomaly(key string, a models.Anomaly) error {
	return h.send(Message{Type: "anomaly", Timestamp: time.Now(), Anomaly: &AnomalyEvent{Key: key, Anomaly: a}})
}

func (h *Hub) send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := h.ctx.Err(); err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
