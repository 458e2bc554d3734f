package insights

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP connections to the insights WebSocket stream.
type Handler struct {
	hub      *Hub
	ctx      context.Context
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler bound to hub. allowedOrigins empty permits
// any origin (matching the demo pipeline's single-operator deployment
// model); a non-empty list restricts CheckOrigin to an exact, case-
// insensitive match.
func NewHandler(ctx context.Context, hub *Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	originMap := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originMap[strings.ToLower(o)] = true
	}
	return &Handler{
		hub: hub,
		ctx: ctx,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(originMap) == 0 {
					return true
				}
				origin := strings.ToLower(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				return originMap[origin]
			},
		},
	}
}

// ServeWS upgrades the request and registers the resulting client with the
// hub, starting its read/write pumps.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("insights: websocket upgrade failed", "error", err)
		return
	}
	client := NewClient(h.ctx, h.hub, conn, h.log)
	go client.WritePump()
	go client.ReadPump()
}
