package insights

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one subscribed WebSocket connection. Clients on this stream are
// read-only observers: ReadPump exists only to detect disconnects and honor
// pings, not to accept subscription filters.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wraps an accepted WebSocket connection and registers it with hub.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    hub,
		log:    logger,
		ctx:    clientCtx,
		cancel: cancel,
	}
	hub.register <- c
	return c
}

// ReadPump drains and discards inbound frames so pongs are processed, and
// unregisters the client once the connection closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.log.Warn("insights: websocket read error", "error", err)
				}
				return
			}
		}
	}
}

// WritePump delivers broadcast messages and periodic pings to the peer.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			metrics.WebSocketConnectionsActive.Set(float64(c.hub.ClientCount()))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the client's pumps.
func (c *Client) Close() {
	c.cancel()
}
