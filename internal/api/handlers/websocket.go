package handlers

import (
	"log/slog"
	"net/http"

	"channel-service/internal/presence"
	ws "channel-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *ws.Hub
	session  *presence.Manager
	chats    ws.ChatSink
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(hub *ws.Hub, session *presence.Manager, chats ws.ChatSink, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:     hub,
		session: session,
		chats:   chats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the CORS middleware on the rest
			// of the API; the upgrade accepts any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleWebSocket upgrades the HTTP request and starts the client pumps.
// Identity arrives later through channel.join messages, not here.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, h.session, h.chats, h.logger)
	h.logger.Debug("websocket connection established", "connId", client.ID(), "remote", c.ClientIP())
	client.Start()
}
