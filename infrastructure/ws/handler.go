package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"video2tool/contract"
)

// Handler upgrades HTTP requests to collaboration connections.
type Handler struct {
	log        *slog.Logger
	service    contract.ICollabService
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewHandler(log *slog.Logger, service contract.ICollabService,
	allowedOrigins []string, bufferSize int) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Handler{
		log:     log,
		service: service,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed[origin]
			},
		},
		bufferSize: bufferSize,
	}
}

// ServeWS handles GET /ws. It blocks for the lifetime of the connection.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	conn := NewConn(h.log, wsConn, h.bufferSize)
	go conn.WritePump()

	sess := &session{log: h.log, conn: conn, service: h.service}
	sess.readLoop(wsConn)
}
